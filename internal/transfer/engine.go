// Package transfer serializes the persisted state to a portable
// payload and merges an external payload back in, entity by entity.
package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"FundBoard/internal/layout"
	"FundBoard/internal/model"
	"FundBoard/internal/position"
	"FundBoard/internal/refresh"
	"FundBoard/internal/registry"
	"FundBoard/internal/store"
)

// ErrBadPayload marks a malformed transfer payload. A failed parse is
// guaranteed not to have mutated any store.
var ErrBadPayload = errors.New("transfer: malformed payload")

// PayloadVersion is the transfer object schema version.
const PayloadVersion = 1

// Payload is the versioned transfer object. Positions are accepted on
// import when present but are not part of the export schema.
type Payload struct {
	Version        int              `json:"version"`
	Funds          []model.Snapshot `json:"funds"`
	Favorites      []string         `json:"favorites"`
	Groups         []model.Group    `json:"groups"`
	CollapsedCodes []string         `json:"collapsedCodes"`
	RefreshMs      int              `json:"refreshMs"`
	ViewMode       string           `json:"viewMode"`
	ExportedAt     string           `json:"exportedAt"`
}

// Refresher triggers a scoped refresh after import appends codes.
type Refresher interface {
	RequestRefresh(codes []string) bool
}

// ImportResult reports what an import changed.
type ImportResult struct {
	AppendedCodes  []string `json:"appendedCodes"`
	RefreshStarted bool     `json:"refreshStarted"`
}

// Engine applies the per-entity merge rules between the persistence
// store and transfer payloads.
type Engine struct {
	st        store.Store
	reg       *registry.Registry
	ledger    *position.Ledger
	lay       *layout.Manager
	sched     *refresh.Scheduler
	refresher Refresher
}

func NewEngine(st store.Store, reg *registry.Registry, ledger *position.Ledger,
	lay *layout.Manager, sched *refresh.Scheduler, refresher Refresher) *Engine {
	return &Engine{st: st, reg: reg, ledger: ledger, lay: lay, sched: sched, refresher: refresher}
}

// Export builds the transfer payload from the persistence store
// directly, not from in-memory state, so it can never be stale.
func (e *Engine) Export() (*Payload, error) {
	funds, err := loadJSONList[model.Snapshot](e.st, store.KeyFunds)
	if err != nil {
		return nil, err
	}
	favorites, err := loadJSONList[string](e.st, store.KeyFavorites)
	if err != nil {
		return nil, err
	}
	groups, err := loadJSONList[model.Group](e.st, store.KeyGroups)
	if err != nil {
		return nil, err
	}
	collapsed, err := loadJSONList[string](e.st, store.KeyCollapsedCodes)
	if err != nil {
		return nil, err
	}

	refreshMs := e.sched.Interval()
	if raw, ok, err := e.st.Get(store.KeyRefreshMs); err == nil && ok {
		if ms, err := strconv.Atoi(raw); err == nil {
			refreshMs = ms
		}
	}

	viewMode := string(model.ViewCard)
	if raw, ok, err := e.st.Get(store.KeyViewMode); err == nil && ok && model.ValidViewMode(model.ViewMode(raw)) {
		viewMode = raw
	}

	return &Payload{
		Version:        PayloadVersion,
		Funds:          funds,
		Favorites:      favorites,
		Groups:         groups,
		CollapsedCodes: collapsed,
		RefreshMs:      refreshMs,
		ViewMode:       viewMode,
		ExportedAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ExportTo marshals the payload and hands it to the delivery, whose
// error return is the completion signal. Returns the generated
// filename.
func (e *Engine) ExportTo(d Delivery) (string, error) {
	payload, err := e.Export()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	filename := fmt.Sprintf("fund-config-%d.json", time.Now().UnixMilli())
	if err := d.Deliver(filename, data); err != nil {
		return "", err
	}
	return filename, nil
}

// importFields keeps every field raw so one bad field is skipped
// without failing the others, matching field-presence-driven merging.
type importFields struct {
	Funds          json.RawMessage `json:"funds"`
	Favorites      json.RawMessage `json:"favorites"`
	Groups         json.RawMessage `json:"groups"`
	CollapsedCodes json.RawMessage `json:"collapsedCodes"`
	Positions      json.RawMessage `json:"positions"`
	RefreshMs      json.RawMessage `json:"refreshMs"`
	ViewMode       json.RawMessage `json:"viewMode"`
}

// Import merges an external payload into the current persisted state.
// Every entity merges against a freshly re-read store, then a scoped
// refresh is requested for the newly appended fund codes only.
func (e *Engine) Import(data []byte) (*ImportResult, error) {
	var fields importFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	// Re-read the persisted state before merging; in-memory state is
	// not trusted here.
	if err := e.reg.Reload(); err != nil {
		return nil, fmt.Errorf("reload funds: %w", err)
	}
	if err := e.ledger.Reload(); err != nil {
		return nil, fmt.Errorf("reload positions: %w", err)
	}
	if err := e.lay.Reload(); err != nil {
		return nil, fmt.Errorf("reload layout: %w", err)
	}

	result := &ImportResult{}

	if incoming := decodeField[[]model.Snapshot](fields.Funds); incoming != nil {
		// Existing snapshots are never overwritten by import; only
		// absent codes are appended.
		result.AppendedCodes = e.reg.Append(registry.Dedupe(*incoming))
	}

	if incoming := decodeField[[]string](fields.Favorites); incoming != nil {
		e.lay.ReplaceFavorites(unionStrings(e.lay.Favorites(), *incoming))
	}

	if incoming := decodeField[[]model.Group](fields.Groups); incoming != nil {
		merged, _ := MergeByKey(e.lay.Groups(), *incoming,
			func(g model.Group) string { return g.ID },
			func(existing, in model.Group) model.Group {
				existing.Codes = unionStrings(existing.Codes, in.Codes)
				return existing
			})
		e.lay.UpdateGroups(merged)
	}

	if incoming := decodeField[[]string](fields.CollapsedCodes); incoming != nil {
		e.lay.ReplaceCollapsed(unionStrings(e.lay.CollapsedCodes(), *incoming))
	}

	if incoming := decodeField[map[string]model.Position](fields.Positions); incoming != nil {
		// Whole-record replace at code granularity.
		e.ledger.MergeFrom(*incoming)
	}

	if ms := decodeField[float64](fields.RefreshMs); ms != nil {
		if *ms >= refresh.MinIntervalMs {
			e.sched.SetInterval(int(*ms))
		} else {
			log.Printf("[WARN] import: refreshMs %v below %dms floor, ignored", *ms, refresh.MinIntervalMs)
		}
	}

	if mode := decodeField[string](fields.ViewMode); mode != nil {
		if model.ValidViewMode(model.ViewMode(*mode)) {
			if err := e.lay.SetViewMode(model.ViewMode(*mode)); err != nil {
				log.Printf("[WARN] import: %v", err)
			}
		}
	}

	// Scoped refresh: only the codes this import actually appended.
	if len(result.AppendedCodes) > 0 {
		result.RefreshStarted = e.refresher.RequestRefresh(result.AppendedCodes)
	}

	log.Printf("[INFO] import done: %d funds appended", len(result.AppendedCodes))
	return result, nil
}

// decodeField decodes a raw JSON field, returning nil when the field
// is absent or doesn't have the expected shape.
func decodeField[T any](raw json.RawMessage) *T {
	if len(raw) == 0 {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func loadJSONList[T any](st store.Store, key string) ([]T, error) {
	out := []T{}
	raw, ok, err := st.Get(key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
