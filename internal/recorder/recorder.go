package recorder

import (
	"context"
	"errors"

	"OptionSentinel/internal/model"
)

var (
	// ErrNoInputs is returned when nothing has been ingested yet.
	ErrNoInputs = errors.New("no ingested inputs")
	// ErrNoResults is returned when a side has never been screened.
	ErrNoResults = errors.New("no screen results")
)

// Recorder persists the ingested inputs and the latest screen output per side.
// Every write replaces the previous contents in one transaction, so a failed
// write leaves the old rows in place.
type Recorder interface {
	SaveInputs(ctx context.Context, in *model.Inputs) error
	// LoadInputs reads all input tables from one consistent view.
	LoadInputs(ctx context.Context) (*model.Inputs, error)
	ReplaceResults(ctx context.Context, res *model.ScreenResult) error
	LoadResults(ctx context.Context, side model.Side) (*model.ScreenResult, error)
	Close() error
}
