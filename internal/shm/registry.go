package shm

import (
	"sort"
	"strconv"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// live tracks every region mapped by this process until it is unmapped.
var (
	live      = cmap.New[*MappedRegion]()
	regionSeq atomic.Uint64
)

func track(r *MappedRegion) {
	r.key = r.Name + "#" + strconv.FormatUint(regionSeq.Add(1), 10)
	live.Set(r.key, r)
}

func untrack(r *MappedRegion) {
	if r.key != "" {
		live.Remove(r.key)
	}
}

// Live returns the names of the regions currently mapped by this process,
// one entry per mapping, sorted.
func Live() []string {
	names := make([]string, 0, live.Count())
	for _, r := range live.Items() {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// LiveCount returns how many mappings of name this process holds.
func LiveCount(name string) int {
	n := 0
	live.IterCb(func(_ string, r *MappedRegion) {
		if r.Name == name {
			n++
		}
	})
	return n
}
