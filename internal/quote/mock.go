package quote

import (
	"fmt"

	"FundBoard/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Snapshots map[string]*model.Snapshot
	Errors    map[string]error
	// Calls records every requested code in order.
	Calls []string
	// Block, when non-nil, is received from before each fetch returns.
	Block chan struct{}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchSnapshot(code string) (*model.Snapshot, error) {
	m.Calls = append(m.Calls, code)
	if m.Block != nil {
		<-m.Block
	}
	if err, ok := m.Errors[code]; ok {
		return nil, err
	}
	if snap, ok := m.Snapshots[code]; ok {
		copied := *snap
		return &copied, nil
	}
	return generateMockSnapshot(code), nil
}

func generateMockSnapshot(code string) *model.Snapshot {
	return &model.Snapshot{
		Code:          code,
		Name:          "Mock Fund " + code,
		PreviousNav:   "1.0000",
		EstimatedNav:  "1.0100",
		EstimatedPct:  "1.00",
		EstimatedAsOf: "2026-01-01 15:00",
	}
}

// MockSearcher returns a fixed result list for any keyword.
type MockSearcher struct {
	Results []model.SearchResult
	Err     error
}

func (m *MockSearcher) Name() string { return "mock" }

func (m *MockSearcher) Search(keyword string) ([]model.SearchResult, error) {
	if m.Err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, m.Err)
	}
	return m.Results, nil
}
