// Package quote provides the fund quote fetch and search clients.
package quote

import (
	"errors"

	"FundBoard/internal/model"
)

// ErrFetch marks any failure to retrieve a snapshot from the quote
// source. Callers fall back to the last committed snapshot.
var ErrFetch = errors.New("quote: fetch failed")

// Fetcher retrieves the latest valuation snapshot for a single fund code.
type Fetcher interface {
	FetchSnapshot(code string) (*model.Snapshot, error)
	Name() string
}

// Searcher returns candidate funds for a keyword.
type Searcher interface {
	Search(keyword string) ([]model.SearchResult, error)
	Name() string
}
