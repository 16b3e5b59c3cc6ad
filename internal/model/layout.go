package model

// ViewMode selects how the fund list is rendered.
type ViewMode string

const (
	ViewCard ViewMode = "card"
	ViewList ViewMode = "list"
)

// ValidViewMode reports whether m is one of the two supported modes.
func ValidViewMode(m ViewMode) bool {
	return m == ViewCard || m == ViewList
}

// Special tab identifiers. Any other tab value is a group id.
const (
	TabAll = "all"
	TabFav = "fav"
)

// Group is a named, user-defined subset of fund codes. The id is
// assigned once at creation and never reused or mutated.
type Group struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Codes []string `json:"codes"`
}

// HasCode reports whether code is a member of the group.
func (g *Group) HasCode(code string) bool {
	for _, c := range g.Codes {
		if c == code {
			return true
		}
	}
	return false
}
