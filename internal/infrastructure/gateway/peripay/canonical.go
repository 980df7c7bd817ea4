package peripay

import (
	"sort"
	"strings"
)

// Canonicalize builds the exact plaintext the envelope seals: keys sorted in
// byte order, joined as key=value pairs with '&', no escaping. The gateway
// recomputes the same string to validate integrity, so the ordering is a
// protocol requirement; any deviation fails authentication on the remote
// side.
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
