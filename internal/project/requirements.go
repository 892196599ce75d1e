// SPDX-License-Identifier: MPL-2.0

package project

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// RequirementsFile is the pip requirements file name.
	RequirementsFile = "requirements.txt"
	// PyprojectFile is the PEP 621 project file consulted when no requirements file exists.
	PyprojectFile = "pyproject.toml"
)

// requirementPattern accepts a PEP 508 name with optional extras followed by a
// version specifier, a direct reference or an environment marker.
var requirementPattern = regexp.MustCompile(
	`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*(\[[A-Za-z0-9._,\s-]*\])?\s*` +
		`(?:(?:===|==|!=|~=|<=|>=|<|>)\s*[A-Za-z0-9.*+!_-]+(?:\s*,\s*(?:===|==|!=|~=|<=|>=|<|>)\s*[A-Za-z0-9.*+!_-]+)*|@\s*\S+)?\s*(?:;.*)?$`,
)

type (
	// Requirement is one dependency line that parsed cleanly.
	Requirement struct {
		// Name is the lower-cased distribution name.
		Name string
		// Line is the normalized requirement text.
		Line string
	}

	// Requirements is the parsed dependency set of a project.
	Requirements struct {
		// Source is the file the requirements came from, empty when none exists.
		Source string
		Items  []Requirement
		// Skipped lists the lines that were ignored, with the reason.
		Skipped []string
	}

	pyproject struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
)

// ParseRequirements reads requirement lines from r. Unparseable lines and pip
// options are skipped and reported in Skipped rather than failing the parse.
func ParseRequirements(r io.Reader) (*Requirements, error) {
	reqs := &Requirements{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		reqs.add(lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read requirements: %w", err)
	}
	return reqs, nil
}

// LoadRequirements parses requirements.txt in dir, falling back to the
// [project].dependencies array of pyproject.toml. A project with neither file
// has an empty requirement set.
func LoadRequirements(dir string) (*Requirements, error) {
	path := filepath.Join(dir, RequirementsFile)
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer func() { _ = f.Close() }() // Read-only file; close error non-critical
		reqs, err := ParseRequirements(f)
		if err != nil {
			return nil, err
		}
		reqs.Source = path
		return reqs, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("open %s: %w", RequirementsFile, err)
	}

	path = filepath.Join(dir, PyprojectFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Requirements{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", PyprojectFile, err)
	}

	var pp pyproject
	if err := toml.Unmarshal(data, &pp); err != nil {
		return nil, fmt.Errorf("parse %s: %w", PyprojectFile, err)
	}
	reqs := &Requirements{Source: path}
	for i, dep := range pp.Project.Dependencies {
		reqs.add(i+1, dep)
	}
	return reqs, nil
}

// Names returns the distribution names in declaration order.
func (r *Requirements) Names() []string {
	names := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		names = append(names, item.Name)
	}
	return names
}

// Render returns the normalized requirements file content.
func (r *Requirements) Render() string {
	var sb strings.Builder
	for _, item := range r.Items {
		sb.WriteString(item.Line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (r *Requirements) add(lineNo int, raw string) {
	line := stripComment(raw)
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "-") {
		r.Skipped = append(r.Skipped, fmt.Sprintf("line %d: pip option %q is not supported", lineNo, line))
		return
	}
	m := requirementPattern.FindStringSubmatch(line)
	if m == nil {
		r.Skipped = append(r.Skipped, fmt.Sprintf("line %d: cannot parse %q", lineNo, line))
		return
	}
	r.Items = append(r.Items, Requirement{Name: strings.ToLower(m[1]), Line: line})
}

// stripComment drops a trailing "# ..." comment. A '#' inside a URL fragment
// is kept because pip only treats "#" preceded by whitespace as a comment.
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if idx := strings.Index(line, " #"); idx >= 0 {
		line = line[:idx]
	}
	if idx := strings.Index(line, "\t#"); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}
