package schedule

import (
	"sort"
	"strconv"
	"strings"

	"github.com/harmonize-run/harmonize/api"
)

// setsTable assigns a dense set index to each distinct set identity
// referenced while lowering constraints, mirroring the source's
// HashMap<SystemSet, usize>: a named set is keyed by its StableId, an
// anonymous set by its (order-independent, deduplicated) member id set.
type setsTable struct {
	named map[api.StableId]int
	anon  map[string]int
	next  int
}

func newSetsTable() *setsTable {
	return &setsTable{named: make(map[api.StableId]int), anon: make(map[string]int)}
}

// namedIndex returns the index for a Named(id) set, and whether this is the
// first time it has been referenced.
func (t *setsTable) namedIndex(id api.StableId) (idx int, firstSeen bool) {
	if idx, ok := t.named[id]; ok {
		return idx, false
	}
	idx = t.next
	t.next++
	t.named[id] = idx
	return idx, true
}

// anonIndex returns the index for an Anonymous(members) set, the
// deduplicated member list (Rust converts the Vec into a HashSet before
// keying, so repeated ids in one constraint collapse), and whether this
// exact member set has been seen before.
func (t *setsTable) anonIndex(members []api.SystemId) (idx int, firstSeen bool, unique []api.SystemId) {
	unique = dedupeSystemIds(members)
	key := anonKey(unique)
	if idx, ok := t.anon[key]; ok {
		return idx, false, unique
	}
	idx = t.next
	t.next++
	t.anon[key] = idx
	return idx, true, unique
}

func dedupeSystemIds(ids []api.SystemId) []api.SystemId {
	seen := make(map[api.SystemId]bool, len(ids))
	out := make([]api.SystemId, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// anonKey builds a canonical, order-independent string key for a set of
// SystemIds so that two constraints naming the same members in a
// different order resolve to the same set index, per spec.md §4.2.1's
// requirement that a set's identity doesn't depend on member order.
func anonKey(unique []api.SystemId) string {
	sorted := append([]api.SystemId(nil), unique...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
