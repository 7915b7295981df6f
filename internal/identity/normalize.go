// Package identity provides the canonical identity-matching keys used to
// recognize "the same person" across separate inbound events.
package identity

import "strings"

// minDedupeDigits is the minimum number of phone digits required before a
// phone number is trusted as a dedupe identity.
const minDedupeDigits = 6

// dedupeDigits is how many trailing digits of a phone number participate in
// comparison. Country-code-agnostic on purpose: "+351 912 345 678" and
// "912345678" must compare equal. Numbers from different countries sharing
// the same trailing digits collide; accepted limitation.
const dedupeDigits = 9

// NormalizePhone strips all non-digit characters and keeps the last nine
// digits of the result.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > dedupeDigits {
		return digits[len(digits)-dedupeDigits:]
	}
	return digits
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ComputeDedupeKey derives the canonical dedupe key for a phone/email pair.
// Phone wins over email when both are usable. An empty result means no
// dedupe is possible and the caller must treat the identity as unmergeable.
func ComputeDedupeKey(phone, email string) string {
	p := NormalizePhone(phone)
	if len(p) >= minDedupeDigits {
		return "phone:" + p
	}

	e := NormalizeEmail(email)
	if e != "" {
		return "email:" + e
	}

	return ""
}
