// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"context"
	"sync"

	"github.com/invowk/launchkit/internal/container"
)

// InspectCache memoizes image inspection records for the lifetime of its
// owner. Entries are never invalidated: a rebuild always produces a new tag.
// Failed inspections are not cached.
type InspectCache struct {
	engine container.Engine

	mu      sync.Mutex
	entries map[container.ImageTag]*container.ImageInfo
}

// NewInspectCache creates an empty cache backed by engine.
func NewInspectCache(engine container.Engine) *InspectCache {
	return &InspectCache{
		engine:  engine,
		entries: make(map[container.ImageTag]*container.ImageInfo),
	}
}

// Inspect returns the inspection record of image, asking the engine only on
// the first call for that image.
func (c *InspectCache) Inspect(ctx context.Context, image container.ImageTag) (*container.ImageInfo, error) {
	c.mu.Lock()
	info, ok := c.entries[image]
	c.mu.Unlock()
	if ok {
		return info, nil
	}

	info, err := c.engine.InspectImage(ctx, image)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[image] = info
	c.mu.Unlock()
	return info, nil
}

// Len returns the number of cached records.
func (c *InspectCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
