package diagnosis

import (
	"sort"
	"strconv"
	"strings"
)

const keySeparator = ","

// CanonicalKey sorts a copy of ids ascending and joins them. Duplicates are kept, so
// [2,1,2] becomes "1,2,2" and is a different key from [1,2].
func CanonicalKey(ids []int) string {
	sorted := sortedCopy(ids)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, keySeparator)
}

func sortedCopy(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	sort.Ints(out)
	return out
}
