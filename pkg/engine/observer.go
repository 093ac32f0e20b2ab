package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/logging"
)

// Observer receives evaluation events. Implementations must not block; they
// are called synchronously from the pulling goroutine.
type Observer interface {
	// StrategySelected fires once per join evaluation.
	StrategySelected(strategy string, kind JoinKind, left, right algebra.Operator)
	// RowDropped fires when a per-row error is contained instead of
	// propagated: a filter error, a partial group key, a skipped aggregate
	// value.
	RowDropped(stage Stage, subject string, err error)
	// GroupsEmitted fires when a grouping stage has finalized its groups.
	GroupsEmitted(groups int)
	// QueryFinished fires when a query result has been fully consumed or
	// evaluation stopped with an error.
	QueryFinished(form algebra.QueryForm, rows int, elapsed time.Duration, err error)
}

// Observers fans events out to each observer in order.
type Observers []Observer

func (os Observers) StrategySelected(strategy string, kind JoinKind, left, right algebra.Operator) {
	for _, o := range os {
		o.StrategySelected(strategy, kind, left, right)
	}
}

func (os Observers) RowDropped(stage Stage, subject string, err error) {
	for _, o := range os {
		o.RowDropped(stage, subject, err)
	}
}

func (os Observers) GroupsEmitted(groups int) {
	for _, o := range os {
		o.GroupsEmitted(groups)
	}
}

func (os Observers) QueryFinished(form algebra.QueryForm, rows int, elapsed time.Duration, err error) {
	for _, o := range os {
		o.QueryFinished(form, rows, elapsed, err)
	}
}

// LogObserver writes events to a zap logger at debug level, and failed
// queries at error level.
type LogObserver struct {
	Logger *zap.SugaredLogger
}

func (l LogObserver) StrategySelected(strategy string, kind JoinKind, left, right algebra.Operator) {
	l.Logger.Debugw("join strategy selected",
		logging.FieldStrategy, strategy,
		"kind", kind.String(),
		"right", right.String(),
	)
}

func (l LogObserver) RowDropped(stage Stage, subject string, err error) {
	l.Logger.Debugw("row error contained",
		logging.FieldStage, string(stage),
		logging.FieldExpression, subject,
		logging.FieldError, err.Error(),
	)
}

func (l LogObserver) GroupsEmitted(groups int) {
	l.Logger.Debugw("groups finalized", logging.FieldGroups, groups)
}

func (l LogObserver) QueryFinished(form algebra.QueryForm, rows int, elapsed time.Duration, err error) {
	if err != nil {
		l.Logger.Errorw("query failed",
			"form", form.String(),
			logging.FieldDurationMS, elapsed.Milliseconds(),
			logging.FieldError, err.Error(),
		)
		return
	}
	l.Logger.Debugw("query finished",
		"form", form.String(),
		logging.FieldCount, rows,
		logging.FieldDurationMS, elapsed.Milliseconds(),
	)
}
