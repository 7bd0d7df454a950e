package catalog

import "strings"

// naturalLess orders names so that embedded numbers compare by value:
// "Table 2" sorts before "Table 10". Letters compare case-insensitively.
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		ca, restA := chunk(a)
		cb, restB := chunk(b)
		if ca != cb {
			if isDigits(ca) && isDigits(cb) {
				na, nb := strings.TrimLeft(ca, "0"), strings.TrimLeft(cb, "0")
				if len(na) != len(nb) {
					return len(na) < len(nb)
				}
				if na != nb {
					return na < nb
				}
				return len(ca) < len(cb)
			}
			return ca < cb
		}
		a, b = restA, restB
	}
	return len(a) < len(b)
}

// chunk splits off the leading run of digits or non-digits.
func chunk(s string) (string, string) {
	digit := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDigits(s string) bool { return s != "" && isDigit(s[0]) }
