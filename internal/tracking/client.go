// SPDX-License-Identifier: MPL-2.0

package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// Setting keys understood by Service.Setting.
const (
	SettingBaseURL = "base_url"
	SettingEntity  = "entity"
	SettingProject = "project"
)

var (
	// ErrConflict is returned when a run queue item was already claimed by
	// another launcher or its lease has ended.
	ErrConflict = errors.New("run queue item conflict")

	// ErrNoQueue is returned when acknowledging without a configured queue.
	ErrNoQueue = errors.New("no run queue configured")
)

type (
	// Client is the subset of the tracking service a launch depends on.
	Client interface {
		// Setting returns a configured value, empty when unset.
		Setting(key string) string
		// APIKey returns the credential injected into launch images.
		APIKey() string
		// AckRunQueueItem claims itemID for runID.
		AckRunQueueItem(ctx context.Context, itemID, runID string) error
	}

	// Acker acknowledges run queue items.
	Acker interface {
		Ack(ctx context.Context, itemID, runID string) error
	}

	// ConflictError reports why a run queue item could not be claimed.
	ConflictError struct {
		ItemID string
		Reason string
	}

	// Settings are the static tracking-service values of one launcher.
	Settings struct {
		BaseURL string
		APIKey  string
		Entity  string
		Project string
	}

	// Service implements Client from static settings and an optional queue.
	Service struct {
		settings Settings
		queue    Acker
		logger   *log.Logger
	}

	// ServiceOption configures a Service.
	ServiceOption func(*Service)
)

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("run queue item %q: %s", e.ItemID, e.Reason)
}

// Unwrap returns ErrConflict so callers can use errors.Is.
func (e *ConflictError) Unwrap() error { return ErrConflict }

// WithQueue sets the run queue items are acknowledged on.
func WithQueue(q Acker) ServiceOption {
	return func(s *Service) { s.queue = q }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(settings Settings, opts ...ServiceOption) *Service {
	s := &Service{settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "tracking"})
	}
	return s
}

// Setting returns the value of key, empty for unknown keys.
func (s *Service) Setting(key string) string {
	switch key {
	case SettingBaseURL:
		return s.settings.BaseURL
	case SettingEntity:
		return s.settings.Entity
	case SettingProject:
		return s.settings.Project
	default:
		return ""
	}
}

// APIKey returns the tracking credential.
func (s *Service) APIKey() string { return s.settings.APIKey }

// HasQueue reports whether run queue items can be acknowledged.
func (s *Service) HasQueue() bool { return s.queue != nil }

// AckRunQueueItem claims itemID for runID on the configured queue.
func (s *Service) AckRunQueueItem(ctx context.Context, itemID, runID string) error {
	if s.queue == nil {
		return ErrNoQueue
	}
	if err := s.queue.Ack(ctx, itemID, runID); err != nil {
		return err
	}
	s.logger.Debug("Acknowledged run queue item", "item", itemID, "run", runID)
	return nil
}
