package models

import (
	"fmt"
	"sort"
	"strings"

	dErrors "rollcall/pkg/domain-errors"
)

const (
	maxClassificationKeys   = 16
	maxClassificationKeyLen = 64
	maxClassificationValLen = 128
)

// Classification holds opaque issuer-supplied tags (cohort, subject, section)
// that a claimant must match to use a code.
//
// Keys are case-insensitive identifiers; values are compared case-insensitively
// after trimming. Every key on the session must be present with an equal value
// in the claimant's classification. Extra claimant keys are ignored, and an
// empty session classification accepts anyone.
type Classification map[string]string

// Normalize returns a copy with trimmed, lowercased keys and trimmed values.
// Entries with a blank key are dropped.
func (c Classification) Normalize() Classification {
	out := make(Classification, len(c))
	for k, v := range c {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(v)
	}
	return out
}

// Matches reports whether claimant satisfies every tag in c.
func (c Classification) Matches(claimant Classification) bool {
	normalized := claimant.Normalize()
	for k, v := range c.Normalize() {
		got, ok := normalized[k]
		if !ok || !strings.EqualFold(got, v) {
			return false
		}
	}
	return true
}

// Project returns the claimant's values for the keys present in c, so a
// mismatch can be reported field by field.
func (c Classification) Project(claimant Classification) Classification {
	normalized := claimant.Normalize()
	out := make(Classification, len(c))
	for k := range c.Normalize() {
		out[k] = normalized[k]
	}
	return out
}

// Validate enforces size limits on the tags.
func (c Classification) Validate() error {
	if len(c) > maxClassificationKeys {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("classification must have at most %d entries", maxClassificationKeys))
	}
	for k, v := range c {
		if len(k) > maxClassificationKeyLen {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("classification key %q is too long", k))
		}
		if len(v) > maxClassificationValLen {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("classification value for %q is too long", k))
		}
	}
	return nil
}

// Clone returns an independent copy.
func (c Classification) Clone() Classification {
	if c == nil {
		return nil
	}
	out := make(Classification, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String renders the tags as sorted "key=value" pairs.
func (c Classification) String() string {
	if len(c) == 0 {
		return "any"
	}
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := c[k]
		if v == "" {
			v = "(none)"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, ", ")
}
