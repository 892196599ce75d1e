// SPDX-License-Identifier: MPL-2.0

package redact

import (
	"strconv"
	"strings"
	"testing"
	"unicode"
)

func TestRedactor_Assign(t *testing.T) {
	t.Parallel()

	r := New()
	if got := r.Assign("LAUNCHKIT_PROJECT", "demo"); got != "LAUNCHKIT_PROJECT=demo" {
		t.Errorf("Assign() = %q", got)
	}
	if got := r.Assign(APIKeyVar, "abc123def"); got != "LAUNCHKIT_API_KEY=abc123def" {
		t.Errorf("Assign() = %q", got)
	}
}

func TestRedactor_Sanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "env instruction",
			in:   "ENV LAUNCHKIT_API_KEY=abc123def",
			want: "ENV LAUNCHKIT_API_KEY",
		},
		{
			name: "several occurrences",
			in:   "ENV LAUNCHKIT_API_KEY=abc123def\nRUN LAUNCHKIT_API_KEY=zzz-999 true",
			want: "ENV LAUNCHKIT_API_KEY\nRUN LAUNCHKIT_API_KEY true",
		},
		{
			name: "double quoted token",
			in:   `ENV LAUNCHKIT_API_KEY="a b c"`,
			want: "ENV LAUNCHKIT_API_KEY",
		},
		{
			name: "double quoted token with escaped quote",
			in:   `ENV LAUNCHKIT_API_KEY="to\"ken value" && true`,
			want: "ENV LAUNCHKIT_API_KEY && true",
		},
		{
			name: "token with punctuation",
			in:   "docker run -e LAUNCHKIT_API_KEY=local-abc.def/123 img",
			want: "docker run -e LAUNCHKIT_API_KEY img",
		},
		{
			name: "non secret untouched",
			in:   "ENV LAUNCHKIT_PROJECT=demo",
			want: "ENV LAUNCHKIT_PROJECT=demo",
		},
		{
			name: "prefix of another name untouched",
			in:   "MY_LAUNCHKIT_API_KEY_HINT=x",
			want: "MY_LAUNCHKIT_API_KEY_HINT=x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := New().Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactor_SanitizeMasksStrayValues(t *testing.T) {
	t.Parallel()

	r := New("REGISTRY_TOKEN")
	line := r.Assign("REGISTRY_TOKEN", "tok-0000-secret")
	text := "ENV " + line + "\n# copied: tok-0000-secret\n"

	got := r.Sanitize(text)
	if strings.Contains(got, "tok-0000-secret") {
		t.Fatalf("Sanitize() leaked the secret: %q", got)
	}
	if !strings.Contains(got, "ENV REGISTRY_TOKEN\n") {
		t.Errorf("Sanitize() = %q, want assignment collapsed to the name", got)
	}
	if !strings.Contains(got, Mask) {
		t.Errorf("Sanitize() = %q, want stray value masked", got)
	}
}

func TestRedactor_SanitizeQuotingAwareSecrets(t *testing.T) {
	t.Parallel()

	secrets := []string{
		`to"ken value`,
		`it's a secret`,
		`back\slash token`,
		`mix "q" 'a' \ end`,
		`"wrapped"`,
	}

	for _, secret := range secrets {
		for _, quoted := range []bool{false, true} {
			name := secret
			value := secret
			if quoted {
				name = "quoted " + secret
				value = strconv.Quote(secret)
			}
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				r := New()
				text := "ENV " + r.Assign(APIKeyVar, value) + "\n# echo " + secret + "\n"
				got := r.Sanitize(text)

				if !strings.HasPrefix(got, "ENV "+APIKeyVar+"\n") {
					t.Errorf("Sanitize() = %q, want assignment collapsed to the name", got)
				}
				if strings.Contains(got, secret) {
					t.Fatalf("Sanitize() leaked the secret: %q", got)
				}
				words := strings.FieldsFunc(secret, func(c rune) bool {
					return !unicode.IsLetter(c)
				})
				for _, w := range words {
					if len(w) >= 3 && strings.Contains(got, w) {
						t.Errorf("Sanitize() = %q, leaked fragment %q", got, w)
					}
				}
			})
		}
	}
}

func TestRedactor_ShortValuesNotMasked(t *testing.T) {
	t.Parallel()

	r := New()
	r.Assign(APIKeyVar, "x")
	if got := r.Sanitize("x marks the spot"); got != "x marks the spot" {
		t.Errorf("Sanitize() = %q, short values must not be masked", got)
	}
}

func TestRedactor_SanitizeArgs(t *testing.T) {
	t.Parallel()

	r := New()
	args := []string{"run", "-e", "LAUNCHKIT_API_KEY=abc123def", "img"}
	got := r.SanitizeArgs(args)
	if got[2] != "LAUNCHKIT_API_KEY" {
		t.Errorf("SanitizeArgs()[2] = %q", got[2])
	}
	if args[2] != "LAUNCHKIT_API_KEY=abc123def" {
		t.Error("SanitizeArgs() must not modify its input")
	}
}
