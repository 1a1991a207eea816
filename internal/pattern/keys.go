package pattern

import (
	"sort"
	"strings"
)

// Key canonicalizes a dimension map into an order-independent key string:
// "dim=value|dim=value" with pairs sorted lexicographically. Two maps with
// the same pairs always yield the same key regardless of insertion order.
func Key(dims map[string]string) string {
	pairs := make([]string, 0, len(dims))
	for k, v := range dims {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// ParseKey reverses Key. Malformed segments are skipped.
func ParseKey(key string) map[string]string {
	dims := make(map[string]string)
	if key == "" {
		return dims
	}
	for _, pair := range strings.Split(key, "|") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			continue
		}
		dims[k] = v
	}
	return dims
}
