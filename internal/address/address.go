// Package address normalizes the raw addresses reported by a
// transport adapter into the canonical form used as the key for every
// table in this repo: uppercase letters and digits (uppercase hex for a
// hardware address), no separators.
package address

import "strings"

// Normalize strips any punctuation a transport might use to format a
// device address (colons, dashes, spaces) and upper-cases the rest.
// Two different renderings of the same hardware address ("aa:bb:cc"
// and "AA-BB-CC") normalize to the same key so the connection manager
// can deduplicate on it.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			continue
		}
	}
	return strings.ToUpper(b.String())
}

// Valid reports whether s looks like a normalized address: non-empty
// and composed only of uppercase hex/alnum characters. It does not
// enforce a fixed length since transport-reported addresses vary in
// width across platforms.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	return s == Normalize(s)
}
