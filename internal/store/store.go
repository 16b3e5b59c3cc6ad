package store

// Namespaces used by the owning components. Every persisted collection
// lives under exactly one of these keys as a JSON blob.
const (
	KeyFunds          = "funds"
	KeyFavorites      = "favorites"
	KeyGroups         = "groups"
	KeyCollapsedCodes = "collapsedCodes"
	KeyRefreshMs      = "refreshMs"
	KeyViewMode       = "viewMode"
	KeyPositions      = "positions"
)

// Store is a namespaced key→string blob store with synchronous
// get/set semantics.
type Store interface {
	// Get returns the value for key. The second result is false when
	// the key is absent.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Close() error
}

// BatchRecord summarizes one completed refresh batch for history.
type BatchRecord struct {
	Requested  int
	Updated    int
	Failed     int
	DurationMs int64
}

// History persists refresh batch outcomes for later analysis.
type History interface {
	RecordBatch(rec *BatchRecord) error
}

// NoopHistory discards batch records. Used when SQLite is not configured.
type NoopHistory struct{}

func NewNoopHistory() *NoopHistory { return &NoopHistory{} }

func (n *NoopHistory) RecordBatch(_ *BatchRecord) error { return nil }
