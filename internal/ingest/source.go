package ingest

import "TradeBraid/internal/model"

// Source supplies closed-trade events to the pipeline. Poll returns all
// events that arrived since the previous call; an empty slice is normal.
type Source interface {
	Poll() ([]model.ClosedTrade, error)
	Name() string
}

// MockSource returns a fixed batch once, then nothing. Used in tests and
// local development.
type MockSource struct {
	Trades  []model.ClosedTrade
	drained bool
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Poll() ([]model.ClosedTrade, error) {
	if m.drained {
		return nil, nil
	}
	m.drained = true
	return m.Trades, nil
}
