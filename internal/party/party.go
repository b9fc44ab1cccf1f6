package party

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"lobby-scout/internal/constants"
	"lobby-scout/internal/domain"
)

// Marker colors handed out to detected groups, round robin. More groups
// than colors means two parties share a marker; at five seats a side that
// is a cosmetic limitation, not a correctness problem.
var defaultPalette = []string{
	"#e6a23c",
	"#67c23a",
	"#409eff",
	"#f56c6c",
	"#9b59b6",
}

// Detector groups roster members believed to be a premade party, inferred
// from overlap between their recent match fingerprints. Join key is the
// player's opaque id, never the display name.
type Detector struct {
	threshold int
	palette   []string
}

func NewDetector() *Detector {
	return &Detector{
		threshold: constants.PartyOverlapThreshold,
		palette:   defaultPalette,
	}
}

func NewDetectorWithThreshold(threshold int) *Detector {
	d := NewDetector()
	if threshold > 0 {
		d.threshold = threshold
	}
	return d
}

// Detect assigns party keys and marker colors in place. Records without a
// usable identity or with no fingerprints stay singletons. Ten seats at
// most, so brute-force pairwise intersection is fine.
func (d *Detector) Detect(records []*domain.EnrichedRecord) {
	n := len(records)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < n; i++ {
		if !joinable(records[i]) {
			continue
		}
		for j := i + 1; j < n; j++ {
			if !joinable(records[j]) {
				continue
			}
			if overlap(records[i].Fingerprints, records[j].Fingerprints) >= d.threshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	// reset before reassigning; membership may have changed since the
	// last pass
	for _, rec := range records {
		rec.PartyKey = ""
		rec.PartyColor = ""
	}

	// deterministic group enumeration: order by the smallest member's
	// join key
	var roots []int
	for root, members := range groups {
		if len(members) < 2 {
			continue
		}
		roots = append(roots, root)
	}
	sort.Slice(roots, func(a, b int) bool {
		return joinKey(records[groups[roots[a]][0]]) < joinKey(records[groups[roots[b]][0]])
	})

	for gi, root := range roots {
		members := groups[root]
		key := groupKey(records, members)
		color := d.palette[gi%len(d.palette)]
		for _, i := range members {
			records[i].PartyKey = key
			records[i].PartyColor = color
		}
	}
}

func joinable(rec *domain.EnrichedRecord) bool {
	return rec != nil && !rec.Identity.Hidden() && len(rec.Fingerprints) > 0
}

func joinKey(rec *domain.EnrichedRecord) string {
	if rec.Identity.OpaqueID != "" {
		return rec.Identity.OpaqueID
	}
	return fmt.Sprintf("id:%d", rec.Identity.PlayerID)
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for fp := range a {
		if _, ok := b[fp]; ok {
			count++
		}
	}
	return count
}

// groupKey is a stable fingerprint of the group's sorted display names.
func groupKey(records []*domain.EnrichedRecord, members []int) string {
	names := make([]string, 0, len(members))
	for _, i := range members {
		names = append(names, records[i].DisplayName)
	}
	sort.Strings(names)

	h := fnv.New32a()
	h.Write([]byte(strings.Join(names, "\x00")))
	return fmt.Sprintf("party-%08x", h.Sum32())
}
