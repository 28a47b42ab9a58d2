package opt

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller-correctable input errors.
	ErrValidation = errors.New("invalid input")
	// ErrPrecondition marks infeasibility detected before any model is built.
	ErrPrecondition = errors.New("precondition failed")
	// ErrContinuity is a validation error raised by cluster continuity checks.
	ErrContinuity = fmt.Errorf("%w: cluster continuity", ErrValidation)

	ErrNoFeasibleClustering = errors.New("no feasible clustering")
	ErrNoFeasibleAssignment = errors.New("no feasible assignment")
	// ErrInconsistent reports an internal invariant broken between components.
	ErrInconsistent = errors.New("internal consistency violation")
)

type Kind string

const (
	KindInput    Kind = "input"
	KindSolve    Kind = "solve"
	KindInternal Kind = "internal"
)

// KindOf classifies an error returned by this package.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPrecondition):
		return KindInput
	case errors.Is(err, ErrNoFeasibleClustering), errors.Is(err, ErrNoFeasibleAssignment):
		return KindSolve
	default:
		return KindInternal
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

func continuityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContinuity, fmt.Sprintf(format, args...))
}

func inconsistentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}
