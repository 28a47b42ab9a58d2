package transform

import (
	"context"
	"fmt"

	"crewplan/internal/opt"
)

// ParseMode maps a command or route name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeGroups, ModeLeg, ModeCampaign:
		return m, nil
	case "legs":
		return ModeLeg, nil
	case "campaigns":
		return ModeCampaign, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", opt.ErrValidation, s)
}

// Run solves p in the given mode and returns the wire response: a
// ClusterOutput, LegOutput or CampaignOutput.
func Run(ctx context.Context, pl *opt.Planner, mode Mode, p *Payload, base opt.Options) (any, error) {
	if err := p.Check(mode); err != nil {
		return nil, err
	}
	o, err := p.Options(base)
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeGroups:
		res, err := pl.BuildClusters(ctx, p.ClusterInput(), opt.ClusterOptionsFrom(o))
		if err != nil {
			return nil, err
		}
		return NewClusterOutput(res), nil
	case ModeLeg:
		res, err := pl.PlanLeg(ctx, p.LegPlan(), o)
		if err != nil {
			return nil, err
		}
		return NewLegOutput(res, p.Groups), nil
	default:
		res, err := pl.PlanCampaign(ctx, p.CampaignInput(), o)
		if err != nil {
			return nil, err
		}
		return NewCampaignOutput(res, p.Groups), nil
	}
}
