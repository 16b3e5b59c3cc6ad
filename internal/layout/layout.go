// Package layout owns favorites, groups, collapse flags, the current
// tab, and the view mode, together with their persistence.
package layout

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"FundBoard/internal/model"
	"FundBoard/internal/store"
)

// Manager holds the organizational state around the fund list. Every
// mutator persists synchronously.
type Manager struct {
	mu        sync.Mutex
	favorites map[string]bool
	collapsed map[string]bool
	groups    []model.Group
	tab       string
	viewMode  model.ViewMode
	st        store.Store
}

// New loads all collections and the view mode from the store.
func New(st store.Store) (*Manager, error) {
	m := &Manager{st: st}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload re-reads favorites, groups, collapse flags and view mode from
// the persistence store. The current tab is session state: it is kept
// if it still points at an existing group, otherwise reset to "all".
func (m *Manager) Reload() error {
	favorites, err := loadStringSet(m.st, store.KeyFavorites)
	if err != nil {
		return err
	}
	collapsed, err := loadStringSet(m.st, store.KeyCollapsedCodes)
	if err != nil {
		return err
	}

	var groups []model.Group
	raw, ok, err := m.st.Get(store.KeyGroups)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &groups); err != nil {
			return fmt.Errorf("decode groups: %w", err)
		}
	}

	viewMode := model.ViewCard
	if raw, ok, err := m.st.Get(store.KeyViewMode); err != nil {
		return fmt.Errorf("load view mode: %w", err)
	} else if ok && model.ValidViewMode(model.ViewMode(raw)) {
		viewMode = model.ViewMode(raw)
	}

	m.mu.Lock()
	m.favorites = favorites
	m.collapsed = collapsed
	m.groups = groups
	m.viewMode = viewMode
	if m.tab == "" || (m.tab != model.TabAll && m.tab != model.TabFav && m.findGroupLocked(m.tab) < 0) {
		m.tab = model.TabAll
	}
	m.mu.Unlock()
	return nil
}

func loadStringSet(st store.Store, key string) (map[string]bool, error) {
	set := make(map[string]bool)
	raw, ok, err := st.Get(key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if ok && raw != "" {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		for _, c := range list {
			set[c] = true
		}
	}
	return set, nil
}

// Favorites returns the favorite codes, sorted.
func (m *Manager) Favorites() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.favorites)
}

// IsFavorite reports whether code is in the favorite set.
func (m *Manager) IsFavorite(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.favorites[code]
}

// CollapsedCodes returns the collapsed codes, sorted.
func (m *Manager) CollapsedCodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.collapsed)
}

// IsCollapsed reports whether the detail panel for code is collapsed.
func (m *Manager) IsCollapsed(code string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collapsed[code]
}

// Groups returns the groups in creation order.
func (m *Manager) Groups() []model.Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyGroups(m.groups)
}

// CurrentTab returns "all", "fav", or a group id.
func (m *Manager) CurrentTab() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tab
}

// SetCurrentTab switches the active tab. Unknown group ids fall back
// to "all".
func (m *Manager) SetCurrentTab(tab string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tab != model.TabAll && tab != model.TabFav && m.findGroupLocked(tab) < 0 {
		tab = model.TabAll
	}
	m.tab = tab
}

// ViewMode returns the current view mode.
func (m *Manager) ViewMode() model.ViewMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewMode
}

// SetViewMode persists mode. Values other than "card" and "list" are
// rejected.
func (m *Manager) SetViewMode(mode model.ViewMode) error {
	if !model.ValidViewMode(mode) {
		return fmt.Errorf("invalid view mode %q", mode)
	}
	m.mu.Lock()
	m.viewMode = mode
	if err := m.st.Set(store.KeyViewMode, string(mode)); err != nil {
		log.Printf("[ERROR] persist view mode: %v", err)
	}
	m.mu.Unlock()
	return nil
}

// ToggleFavorite flips membership of code in the favorite set. When
// the set becomes empty the current tab unconditionally resets to
// "all", even if it pointed at a group. Likely an unintended side
// effect, but kept deliberately; do not remove without product
// confirmation.
func (m *Manager) ToggleFavorite(code string) {
	m.mu.Lock()
	if m.favorites[code] {
		delete(m.favorites, code)
	} else {
		m.favorites[code] = true
	}
	m.persistSetLocked(store.KeyFavorites, m.favorites)
	if len(m.favorites) == 0 {
		m.tab = model.TabAll
	}
	m.mu.Unlock()
}

// ToggleCollapse flips the collapse flag for code.
func (m *Manager) ToggleCollapse(code string) {
	m.mu.Lock()
	if m.collapsed[code] {
		delete(m.collapsed, code)
	} else {
		m.collapsed[code] = true
	}
	m.persistSetLocked(store.KeyCollapsedCodes, m.collapsed)
	m.mu.Unlock()
}

// EnsureCollapsed adds any codes not yet present to the collapsed set:
// new funds start collapsed. Persists only when something changed.
func (m *Manager) EnsureCollapsed(codes []string) {
	m.mu.Lock()
	changed := false
	for _, c := range codes {
		if c != "" && !m.collapsed[c] {
			m.collapsed[c] = true
			changed = true
		}
	}
	if changed {
		m.persistSetLocked(store.KeyCollapsedCodes, m.collapsed)
	}
	m.mu.Unlock()
}

// ReplaceFavorites overwrites the favorite set with an already-merged
// list. Used by the import engine; goes through the empty-set tab
// reset like any other favorites transition.
func (m *Manager) ReplaceFavorites(codes []string) {
	m.mu.Lock()
	m.favorites = make(map[string]bool, len(codes))
	for _, c := range codes {
		if c != "" {
			m.favorites[c] = true
		}
	}
	m.persistSetLocked(store.KeyFavorites, m.favorites)
	if len(m.favorites) == 0 {
		m.tab = model.TabAll
	}
	m.mu.Unlock()
}

// ReplaceCollapsed overwrites the collapsed set with an already-merged
// list. Used by the import engine.
func (m *Manager) ReplaceCollapsed(codes []string) {
	m.mu.Lock()
	m.collapsed = make(map[string]bool, len(codes))
	for _, c := range codes {
		if c != "" {
			m.collapsed[c] = true
		}
	}
	m.persistSetLocked(store.KeyCollapsedCodes, m.collapsed)
	m.mu.Unlock()
}

// AddGroup creates a group with a fresh time-derived id and switches
// the current tab to it.
func (m *Manager) AddGroup(name string) model.Group {
	m.mu.Lock()
	id := m.newGroupIDLocked()
	g := model.Group{ID: id, Name: name, Codes: []string{}}
	m.groups = append(m.groups, g)
	m.persistGroupsLocked()
	m.tab = id
	m.mu.Unlock()
	return g
}

// newGroupIDLocked derives an id from the current time, bumping the
// millisecond value until it doesn't collide with an existing group.
func (m *Manager) newGroupIDLocked() string {
	ms := time.Now().UnixMilli()
	for {
		id := fmt.Sprintf("group_%d", ms)
		if m.findGroupLocked(id) < 0 {
			return id
		}
		ms++
	}
}

// RemoveGroup deletes the group. The current tab resets to "all" only
// if it pointed at the removed group.
func (m *Manager) RemoveGroup(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.findGroupLocked(id)
	if idx < 0 {
		return false
	}
	m.groups = append(m.groups[:idx], m.groups[idx+1:]...)
	m.persistGroupsLocked()
	if m.tab == id {
		m.tab = model.TabAll
	}
	return true
}

// UpdateGroups replaces the whole group list. If the current tab was a
// group that no longer exists, it resets to "all".
func (m *Manager) UpdateGroups(groups []model.Group) {
	m.mu.Lock()
	m.groups = copyGroups(groups)
	m.persistGroupsLocked()
	if m.tab != model.TabAll && m.tab != model.TabFav && m.findGroupLocked(m.tab) < 0 {
		m.tab = model.TabAll
	}
	m.mu.Unlock()
}

// AddFundsToCurrentGroup unions codes into the group matching the
// current tab and returns how many were actually new. It is a no-op
// when the current tab is not a group.
func (m *Manager) AddFundsToCurrentGroup(codes []string) int {
	if len(codes) == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.findGroupLocked(m.tab)
	if idx < 0 {
		return 0
	}
	g := &m.groups[idx]
	added := 0
	for _, c := range codes {
		if c == "" || g.HasCode(c) {
			continue
		}
		g.Codes = append(g.Codes, c)
		added++
	}
	if added > 0 {
		m.persistGroupsLocked()
	}
	return added
}

// RemoveFundFromCurrentGroup removes code from the group matching the
// current tab.
func (m *Manager) RemoveFundFromCurrentGroup(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.findGroupLocked(m.tab)
	if idx < 0 {
		return
	}
	g := &m.groups[idx]
	for i, c := range g.Codes {
		if c == code {
			g.Codes = append(g.Codes[:i], g.Codes[i+1:]...)
			m.persistGroupsLocked()
			return
		}
	}
}

// ToggleFundInGroup flips membership of code in an explicit group,
// independent of the current tab.
func (m *Manager) ToggleFundInGroup(code, groupID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.findGroupLocked(groupID)
	if idx < 0 {
		return
	}
	g := &m.groups[idx]
	for i, c := range g.Codes {
		if c == code {
			g.Codes = append(g.Codes[:i], g.Codes[i+1:]...)
			m.persistGroupsLocked()
			return
		}
	}
	g.Codes = append(g.Codes, code)
	m.persistGroupsLocked()
}

func (m *Manager) findGroupLocked(id string) int {
	for i, g := range m.groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) persistSetLocked(key string, set map[string]bool) {
	data, err := json.Marshal(sortedKeys(set))
	if err != nil {
		log.Printf("[ERROR] encode %s: %v", key, err)
		return
	}
	if err := m.st.Set(key, string(data)); err != nil {
		log.Printf("[ERROR] persist %s: %v", key, err)
	}
}

func (m *Manager) persistGroupsLocked() {
	data, err := json.Marshal(m.groups)
	if err != nil {
		log.Printf("[ERROR] encode groups: %v", err)
		return
	}
	if err := m.st.Set(store.KeyGroups, string(data)); err != nil {
		log.Printf("[ERROR] persist groups: %v", err)
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyGroups(groups []model.Group) []model.Group {
	out := make([]model.Group, len(groups))
	for i, g := range groups {
		codes := make([]string, len(g.Codes))
		copy(codes, g.Codes)
		out[i] = model.Group{ID: g.ID, Name: g.Name, Codes: codes}
	}
	return out
}
