package transform

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"crewplan/internal/opt"
)

const smallCamp = `{
  "balloons": [{"id": "b1", "maxCapacity": 3, "allowedOperatorIds": ["ann"]}],
  "cars": [
    {"id": "c1", "maxCapacity": 4, "hasTrailerClutch": true, "allowedOperatorIds": ["ben"]},
    {"id": "c2", "maxCapacity": 3, "allowedOperatorIds": ["cy"]}
  ],
  "people": [
    {"id": "ann", "role": "counselor"},
    {"id": "ben", "role": "counselor"},
    {"id": "cy", "role": "counselor"},
    {"id": "p1"}, {"id": "p2"}, {"id": "p3"}
  ],
  "legs": 2,
  "options": {"timeLimitSeconds": 2, "workers": 2, "seed": 3}
}`

func runMode(t *testing.T, mode Mode) any {
	t.Helper()
	p, err := Parse([]byte(smallCamp))
	require.NoError(t, err)
	out, err := Run(context.Background(), opt.NewPlanner(zerolog.New(io.Discard)), mode, p, opt.DefaultOptions())
	require.NoError(t, err)
	return out
}

func TestRunModes(t *testing.T) {
	defer goleak.VerifyNone(t)

	groups, ok := runMode(t, ModeGroups).(ClusterOutput)
	require.True(t, ok)
	assert.Equal(t, "OPTIMAL", groups.Status)
	assert.Contains(t, groups.VehicleGroups["b1"], "c1")

	leg, ok := runMode(t, ModeLeg).(LegOutput)
	require.True(t, ok)
	assert.Equal(t, 1, leg.Leg)
	assert.Equal(t, "OPTIMAL", leg.ClusterStatus)
	require.Len(t, leg.VehicleGroups, 1)
	assert.Equal(t, "b1", leg.VehicleGroups[0].Balloon.ID)
	require.NotNil(t, leg.VehicleGroups[0].Balloon.OperatorID)
	assert.Equal(t, "ann", *leg.VehicleGroups[0].Balloon.OperatorID)

	camp, ok := runMode(t, ModeCampaign).(CampaignOutput)
	require.True(t, ok)
	require.Len(t, camp.Legs, 2)
	assert.Len(t, camp.History, 2)
	assert.Equal(t, 2, camp.Legs[1].Leg)
	assert.Equal(t, "OPTIMAL", camp.Legs[1].ClusterStatus, "groups carried over from history")
}

func TestRunRejectsBadRequests(t *testing.T) {
	pl := opt.NewPlanner(zerolog.New(io.Discard))
	p, err := Parse([]byte(`{"balloons":[{"id":"b"}],"people":[{"id":"a"}],"options":{"workers":-1}}`))
	require.NoError(t, err)
	_, err = Run(context.Background(), pl, ModeLeg, p, opt.DefaultOptions())
	require.ErrorIs(t, err, opt.ErrValidation)

	_, err = Run(context.Background(), pl, ModeCampaign, p, opt.DefaultOptions())
	require.ErrorIs(t, err, opt.ErrValidation)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"groups": ModeGroups, "leg": ModeLeg, "legs": ModeLeg, "campaigns": ModeCampaign} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("routes")
	require.ErrorIs(t, err, opt.ErrValidation)
}

func TestNewFailure(t *testing.T) {
	f := NewFailure(opt.ErrNoFeasibleAssignment, nil)
	assert.Equal(t, opt.KindSolve, f.Error.Kind)
	assert.Empty(t, f.Error.Stack)

	f = NewFailure(errors.New("boom"), []byte("goroutine 1"))
	assert.Equal(t, opt.KindInternal, f.Error.Kind)
	assert.Equal(t, "goroutine 1", f.Error.Stack)
}
