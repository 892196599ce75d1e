// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// RenderDockerArgs turns key/value run flags into arguments in key order.
// Single-letter keys become short flags; a "true" value renders a bare flag.
func RenderDockerArgs(args map[string]string) []string {
	keys := slices.Sorted(maps.Keys(args))

	out := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		flag := "--" + k
		if len(k) == 1 {
			flag = "-" + k
		}
		v := args[k]
		if strings.EqualFold(v, "true") {
			out = append(out, flag)
			continue
		}
		out = append(out, flag, v)
	}
	return out
}

// ShellJoin quotes every word for a POSIX shell and joins them.
func ShellJoin(words []string) (string, error) {
	quoted := make([]string, len(words))
	for i, w := range words {
		q, err := syntax.Quote(w, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", w, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}
