// SPDX-License-Identifier: MPL-2.0

// Package redact builds credential-bearing text and strips credentials from
// anything that is persisted or logged.
//
// Every `NAME=value` assignment that may carry a secret is produced by
// Redactor.Assign, so the Redactor knows every secret it has emitted and
// Sanitize can remove all of them.
package redact

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// APIKeyVar is the environment variable carrying the tracking-service credential.
const APIKeyVar = "LAUNCHKIT_API_KEY"

// Mask replaces raw secret values found outside an assignment.
const Mask = "********"

// minSecretLen guards against masking trivially short values such as "1".
const minSecretLen = 4

// Redactor formats assignments and sanitizes text containing them.
// The zero value is not usable; construct with New.
type Redactor struct {
	keys     []string
	patterns []*regexp.Regexp
	values   []string
}

// New returns a Redactor treating the given variable names as secret.
// APIKeyVar is always included.
func New(secretKeys ...string) *Redactor {
	r := &Redactor{}
	r.addKey(APIKeyVar)
	for _, k := range secretKeys {
		r.addKey(k)
	}
	return r
}

func (r *Redactor) addKey(key string) {
	if key == "" || slices.Contains(r.keys, key) {
		return
	}
	r.keys = append(r.keys, key)
	r.patterns = append(r.patterns,
		regexp.MustCompile(`\b`+regexp.QuoteMeta(key)+`=("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|[^\s"']+)`))
}

// IsSecret reports whether key names a secret variable.
func (r *Redactor) IsSecret(key string) bool {
	return slices.Contains(r.keys, key)
}

// Assign returns "key=value". When key is secret the value is remembered so
// that Sanitize also masks stray copies of it. A quoted value is remembered
// in both its quoted and unquoted forms.
func (r *Redactor) Assign(key, value string) string {
	if r.IsSecret(key) {
		r.remember(value)
		if raw, err := strconv.Unquote(value); err == nil {
			r.remember(raw)
		}
	}
	return key + "=" + value
}

// remember keeps values ordered longest first so that a value never
// survives partially because a shorter one inside it was masked first.
func (r *Redactor) remember(value string) {
	if len(value) < minSecretLen || slices.Contains(r.values, value) {
		return
	}
	r.values = append(r.values, value)
	slices.SortStableFunc(r.values, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})
}

// Sanitize replaces every `SECRET=token` with `SECRET` and masks any other
// occurrence of a secret value emitted through Assign. Known values are
// masked before the patterns run, so a token with quotes or escapes cannot
// end the pattern match early.
func (r *Redactor) Sanitize(text string) string {
	for _, v := range r.values {
		text = strings.ReplaceAll(text, v, Mask)
	}
	for i, p := range r.patterns {
		text = p.ReplaceAllLiteralString(text, r.keys[i])
	}
	return text
}

// SanitizeArgs sanitizes each element of an argument vector.
func (r *Redactor) SanitizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Sanitize(a)
	}
	return out
}
