package model

// Holding is one entry in a fund's published top-holdings list.
type Holding struct {
	Name   string   `json:"name"`
	Weight string   `json:"weight"`
	Change *float64 `json:"change,omitempty"`
}

// Snapshot is the latest known valuation record for a fund code.
// A refresh replaces the whole snapshot for a code; fields are never
// patched individually.
type Snapshot struct {
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	PreviousNav    string    `json:"dwjz"`
	EstimatedNav   string    `json:"gsz"`
	EstimatedPct   string    `json:"gszzl"`
	EstimatedAsOf  string    `json:"gztime"`
	PricedCoverage float64   `json:"estPricedCoverage"`
	Holdings       []Holding `json:"holdings,omitempty"`
}

// Position is a held-quantity record for a fund code. At most one per
// code; absence means "no holding", not a zero holding.
type Position struct {
	Shares        float64 `json:"shares"`
	CostPrice     float64 `json:"costPrice"`
	LastTradeNav  float64 `json:"lastTradeNav"`
	LastTradeDate string  `json:"lastTradeDate"`
}

// SearchResult is one candidate fund returned by the search client.
type SearchResult struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Type string `json:"type"`
}
