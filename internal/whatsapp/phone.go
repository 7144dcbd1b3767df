package whatsapp

import "strings"

// NormalizePhone canonicalizes a human-entered phone string into an
// E.164-like destination. It strips everything but digits and a leading +;
// numbers without a + get leading zeros removed before the + is prepended.
// Best-effort only: malformed input yields deterministic malformed output
// rather than an error. Normalizing an already normalized number is a no-op.
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	hasPlus := strings.HasPrefix(value, "+")

	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if !hasPlus {
		digits = strings.TrimLeft(digits, "0")
	}
	return "+" + digits
}
