// SPDX-License-Identifier: MPL-2.0

package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrImageNotInspectable is returned when inspect output holds no image record.
var ErrImageNotInspectable = errors.New("image inspect returned no record")

type (
	// ImageInfo is the subset of an image inspection record the launcher reads.
	ImageInfo struct {
		ID         string
		RepoTags   []string
		WorkingDir string
		Env        []string
		User       string
	}

	inspectRecord struct {
		ID              string         `json:"Id"`
		RepoTags        []string       `json:"RepoTags"`
		Config          *inspectConfig `json:"Config"`
		ContainerConfig *inspectConfig `json:"ContainerConfig"`
	}

	inspectConfig struct {
		WorkingDir string   `json:"WorkingDir"`
		Env        []string `json:"Env"`
		User       string   `json:"User"`
	}
)

// ParseImageInspect decodes the JSON array printed by `image inspect` and
// returns its first record. Config is preferred over the legacy
// ContainerConfig block, which newer engines leave empty.
func ParseImageInspect(data []byte) (*ImageInfo, error) {
	var records []inspectRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode image inspect output: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrImageNotInspectable
	}

	rec := records[0]
	info := &ImageInfo{ID: rec.ID, RepoTags: rec.RepoTags}
	for _, cfg := range []*inspectConfig{rec.Config, rec.ContainerConfig} {
		if cfg == nil {
			continue
		}
		if info.WorkingDir == "" {
			info.WorkingDir = cfg.WorkingDir
		}
		if len(info.Env) == 0 {
			info.Env = cfg.Env
		}
		if info.User == "" {
			info.User = cfg.User
		}
	}
	return info, nil
}

// WorkDir returns the image working directory, "/" when unset.
func (i *ImageInfo) WorkDir() string {
	if i.WorkingDir == "" {
		return "/"
	}
	return i.WorkingDir
}

// EnvValue returns the value of key in the image environment.
func (i *ImageInfo) EnvValue(key string) (string, bool) {
	prefix := key + "="
	for _, kv := range i.Env {
		if v, ok := strings.CutPrefix(kv, prefix); ok {
			return v, true
		}
	}
	return "", false
}

// Home returns the HOME directory baked into the image, falling back to the
// working directory.
func (i *ImageInfo) Home() string {
	if home, ok := i.EnvValue("HOME"); ok && home != "" {
		return home
	}
	return i.WorkDir()
}
