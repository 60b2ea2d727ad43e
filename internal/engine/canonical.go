package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// canonicalPredicate serializes a lookup predicate to a deterministic string
// used as the LookupCache key. Equal predicates must produce equal keys
// regardless of map iteration order or Unicode encoding of the values, so:
//
//   - keys are sorted
//   - strings are NFC normalized
//   - numbers keep their literal formatting (no float re-rounding)
//
// Nested mappings are serialized recursively; anything else falls back to
// fmt formatting of the normalized value.
func canonicalPredicate(entityType string, predicate map[string]any) string {
	var b strings.Builder
	b.WriteString(norm.NFC.String(entityType))
	b.WriteByte('{')
	writeCanonicalMap(&b, predicate)
	b.WriteByte('}')
	return b.String()
}

func writeCanonicalMap(b *strings.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(norm.NFC.String(k)))
		b.WriteByte(':')
		writeCanonicalValue(b, m[k])
	}
}

func writeCanonicalValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case string:
		b.WriteString(strconv.Quote(norm.NFC.String(val)))
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case map[string]any:
		b.WriteByte('{')
		writeCanonicalMap(b, val)
		b.WriteByte('}')
	case nil:
		b.WriteString("null")
	default:
		fmt.Fprintf(b, "%v", val)
	}
}
