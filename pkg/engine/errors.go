package engine

import (
	"fmt"

	"github.com/coolbeans/quarry/pkg/errors"
)

// Stage names the part of evaluation that failed.
type Stage string

const (
	StagePatternMatch Stage = "pattern match"
	StageJoin         Stage = "join"
	StageFilter       Stage = "filter"
	StageGrouping     Stage = "grouping"
	StageAggregate    Stage = "aggregate"
	StageExtend       Stage = "extend"
	StageGraph        Stage = "graph"
	StageOrder        Stage = "order"
	StageProjection   Stage = "projection"
	StageQuery        Stage = "query"
)

// StageError reports which stage failed and the pattern or expression it was
// working on.
type StageError struct {
	Stage   Stage
	Subject string
	Err     error
}

func (e *StageError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Subject, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError wraps err with the stage that observed it. Errors that already
// carry a stage keep the innermost one, which names the real culprit.
func stageError(stage Stage, subject fmt.Stringer, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	s := ""
	if subject != nil {
		s = subject.String()
	}
	return &StageError{Stage: stage, Subject: s, Err: err}
}

// StageOf returns the stage recorded in err, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
