// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/invowk/launchkit/internal/container"
	"github.com/invowk/launchkit/internal/imagebuild"
	"github.com/invowk/launchkit/internal/project"
	"github.com/invowk/launchkit/internal/redact"
	"github.com/invowk/launchkit/internal/tracking"
)

// ackFailedMessage is logged when a run queue item cannot be claimed.
const ackFailedMessage = "Error acking run queue item. Item lease may have ended or another process may have acked it."

// Deps are the collaborators shared by all runners.
type Deps struct {
	Engine   container.Engine
	Builder  *imagebuild.Builder
	Tracking tracking.Client
	Logger   *log.Logger
	// Output receives the output of local runs.
	Output io.Writer
}

func (d Deps) withDefaults(prefix string) Deps {
	if d.Logger == nil {
		d.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: prefix})
	}
	if d.Output == nil {
		d.Output = os.Stdout
	}
	if d.Builder == nil && d.Engine != nil {
		d.Builder = imagebuild.NewBuilder(d.Engine, d.Tracking, imagebuild.WithLogger(d.Logger))
	}
	return d
}

func (d Deps) redactor() *redact.Redactor {
	if d.Builder != nil {
		return d.Builder.Redactor()
	}
	return redact.New()
}

// checkToolchain is the pre-flight check of every runner.
func checkToolchain(engine container.Engine) error {
	if engine == nil {
		return &ToolchainMissingError{Engine: "container engine", Err: errors.New("no engine configured")}
	}
	if !engine.Available() {
		return &ToolchainMissingError{Engine: engine.Name()}
	}
	return nil
}

// launchCommand resolves the entry point argv. It is only required when
// the launch may build an image.
func launchCommand(desc *project.Descriptor) ([]string, error) {
	command, err := desc.Command()
	if err == nil {
		return command, nil
	}
	if desc.Image() != "" && !desc.ForceRebuild() {
		return nil, nil
	}
	return nil, &ConfigurationError{Setting: "entry_point", Err: err}
}

// ackQueueItem claims the configured run queue item. It reports false,
// with a nil error, when another launcher owns the item.
func (d Deps) ackQueueItem(ctx context.Context, desc *project.Descriptor, opts RunOptions) (bool, error) {
	if opts.QueueItem == "" {
		return true, nil
	}
	if d.Tracking == nil {
		return false, &ConfigurationError{
			Setting: "queue_item",
			Message: "a run queue item was given but no tracking service is configured",
		}
	}
	err := d.Tracking.AckRunQueueItem(ctx, opts.QueueItem, desc.RunID())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, tracking.ErrConflict):
		d.Logger.Warn(ackFailedMessage, "item", opts.QueueItem, "error", err)
		return false, nil
	default:
		return false, err
	}
}
