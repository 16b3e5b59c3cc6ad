package transfer

// MergeByKey performs one union-by-key, combine-on-conflict pass:
// current entries keep their order; an incoming entry whose key is
// already present is resolved through combine, an unseen key is
// appended. Returns the merged collection and the appended keys.
func MergeByKey[T any](current, incoming []T, key func(T) string, combine func(existing, incoming T) T) ([]T, []string) {
	merged := make([]T, len(current))
	copy(merged, current)

	index := make(map[string]int, len(current))
	for i, item := range current {
		index[key(item)] = i
	}

	var appended []string
	for _, item := range incoming {
		k := key(item)
		if k == "" {
			continue
		}
		if i, ok := index[k]; ok {
			merged[i] = combine(merged[i], item)
			continue
		}
		index[k] = len(merged)
		merged = append(merged, item)
		appended = append(appended, k)
	}
	return merged, appended
}

// keepExisting is the combine rule for first-seen-wins entities.
func keepExisting[T any](existing, _ T) T { return existing }

// unionStrings merges incoming into current keeping current's order.
func unionStrings(current, incoming []string) []string {
	id := func(s string) string { return s }
	merged, _ := MergeByKey(current, incoming, id, keepExisting[string])
	return merged
}
