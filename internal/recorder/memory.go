package recorder

import (
	"context"
	"sync"

	"OptionSentinel/internal/model"
)

// MemoryRecorder keeps everything in process. Used when no database is configured.
type MemoryRecorder struct {
	mu      sync.RWMutex
	inputs  *model.Inputs
	results map[model.Side]*model.ScreenResult
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{results: make(map[model.Side]*model.ScreenResult)}
}

func (m *MemoryRecorder) SaveInputs(_ context.Context, in *model.Inputs) error {
	cp := copyInputs(in)
	m.mu.Lock()
	m.inputs = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecorder) LoadInputs(_ context.Context) (*model.Inputs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.inputs == nil {
		return nil, ErrNoInputs
	}
	return copyInputs(m.inputs), nil
}

func (m *MemoryRecorder) ReplaceResults(_ context.Context, res *model.ScreenResult) error {
	cp := copyResult(res)
	m.mu.Lock()
	m.results[res.Side] = cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryRecorder) LoadResults(_ context.Context, side model.Side) (*model.ScreenResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[side]
	if !ok {
		return nil, ErrNoResults
	}
	return copyResult(res), nil
}

func (m *MemoryRecorder) Close() error { return nil }

func copyInputs(in *model.Inputs) *model.Inputs {
	return &model.Inputs{
		Quotes:     append([]model.OptionQuote(nil), in.Quotes...),
		History:    append([]model.PriceObservation(nil), in.History...),
		Snapshots:  append([]model.TickerSnapshot(nil), in.Snapshots...),
		Holdings:   append([]model.Holding(nil), in.Holdings...),
		IngestedAt: in.IngestedAt,
	}
}

func copyResult(res *model.ScreenResult) *model.ScreenResult {
	cp := *res
	cp.Candidates = append([]model.CandidateIndicator(nil), res.Candidates...)
	cp.Options = append([]model.RankedOption(nil), res.Options...)
	return &cp
}
