package history

import "sort"

// Merge combines locally cached entries with the authoritative remote list.
//
// Behavior:
//   - The result contains exactly one entry per distinct annotation id.
//   - When both sides have an entry, remote fields override local values
//     field by field; fields absent remotely keep the local value.
//   - Entries present only remotely are added as-is.
//   - The result is sorted newest first by created_at.
func Merge(local []Entry, remote []EntryPatch) []Entry {
	byID := make(map[string]Entry, len(local)+len(remote))
	order := make([]string, 0, len(local)+len(remote))

	for _, e := range local {
		if e.AnnotationID == "" {
			continue
		}
		if _, seen := byID[e.AnnotationID]; !seen {
			order = append(order, e.AnnotationID)
		}
		byID[e.AnnotationID] = e
	}
	for _, p := range remote {
		if p.AnnotationID == "" {
			continue
		}
		existing, seen := byID[p.AnnotationID]
		if !seen {
			order = append(order, p.AnnotationID)
		}
		byID[p.AnnotationID] = p.apply(existing)
	}

	merged := make([]Entry, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// Trim returns at most limit entries from the front of a sorted list.
// A limit <= 0 falls back to DefaultLimit.
func Trim(entries []Entry, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(entries) <= limit {
		return entries
	}
	return entries[:limit]
}

// DefaultSelection returns current unchanged when it is non-empty, otherwise
// the id of the most recent entry. Callers apply it after local hydration and
// again after a remote merge; a value chosen earlier is never overwritten.
func DefaultSelection(current string, entries []Entry) string {
	if current != "" {
		return current
	}
	if len(entries) == 0 {
		return ""
	}
	return entries[0].AnnotationID
}
