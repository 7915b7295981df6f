// Package sync propagates shared fields between the CRM contacts collection
// and the newsletter subscriptions collection whenever either side changes,
// and records each match in the identity map.
package sync

import (
	"reflect"

	"crm_intake_backend/internal/leadstore"
)

// syncFields is the fixed set of shared fields propagated between the two
// collections, by canonical name. Anything outside this list never syncs.
var syncFields = []string{
	"first_name",
	"last_name",
	"email",
	"phone",
	"marketing_consent",
	"unsubscribed",
	"language",
	"coupon_code",
	"coupon_redeemed_at",
	"mailchimp_id",
	"source",
	"notes",
}

// The contacts collection stores the newsletter-scoped fields under prefixed
// names so they do not collide with the contact's own CRM source/notes.
var contactAliases = map[string]string{
	"source": "newsletter_source",
	"notes":  "newsletter_notes",
}

// fieldName maps a canonical sync field to its name in the given collection.
func fieldName(collection, contactsCollection, canonical string) string {
	if collection == contactsCollection {
		if alias, ok := contactAliases[canonical]; ok {
			return alias
		}
	}
	return canonical
}

// candidatePayload projects the source record's sync fields onto the target
// collection's field names. Fields absent (or null) on the source are left
// out entirely so a sync never erases data the target already has.
func candidatePayload(source leadstore.Record, sourceCollection, targetCollection, contactsCollection string) map[string]any {
	candidate := make(map[string]any)
	for _, canonical := range syncFields {
		value, ok := source[fieldName(sourceCollection, contactsCollection, canonical)]
		if !ok || value == nil {
			continue
		}
		candidate[fieldName(targetCollection, contactsCollection, canonical)] = value
	}
	return candidate
}

// hasDiff reports whether writing candidate onto existing would change
// anything. Null and absent are treated as equal; this is what terminates
// the hook loop, because an agreeing pair of records never produces a write.
func hasDiff(candidate map[string]any, existing leadstore.Record) bool {
	for field, value := range candidate {
		if !equalValue(value, existing[field]) {
			return true
		}
	}
	return false
}

func equalValue(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if na, aok := asFloat(a); aok {
		nb, bok := asFloat(b)
		return bok && na == nb
	}
	return reflect.DeepEqual(a, b)
}

// asFloat collapses the numeric types JSON decoding and callers may hand us.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
