package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/loxhue-core/internal/dispatch"
	"github.com/nerrad567/loxhue-core/internal/infrastructure/logging"
	"github.com/nerrad567/loxhue-core/internal/mapping"
)

// Names that address every light and group.
var allNames = map[string]bool{"all": true, "alles": true}

// CommandResult describes what HandleCommand queued.
type CommandResult struct {
	// Entry is the addressed mapping. Empty for the built-in "all" names.
	Entry mapping.Entry

	// Sequence is set when the command fans out to every light and group.
	Sequence bool

	// Targets is how many lights and groups the command was queued for.
	Targets int
}

// HandleCommand is the controller's entry point. The name is matched
// case-insensitively; value is the raw controller value.
//
// Returns:
//   - ErrNotConfigured when no Hue bridge is set up
//   - ErrUnknownTarget when nothing is mapped under name (the name is recorded)
//   - ErrReadOnly for sensors and buttons
//   - command.ErrInvalidValue when value cannot be decoded
func (b *Bridge) HandleCommand(ctx context.Context, name, value string) (CommandResult, error) {
	b.logger.Debug("command received", "name", name, "value", value, logging.CategoryKey, logging.CategoryLight)

	if !b.Configured() {
		return CommandResult{}, ErrNotConfigured
	}

	key := strings.ToLower(name)
	table := b.Table()
	entry, found := table.ByName(key)

	if allNames[key] || (found && entry.IsAll()) {
		targets := table.Commandable()
		if err := b.startSequence(targets, value); err != nil {
			return CommandResult{}, err
		}
		return CommandResult{Entry: entry, Sequence: true, Targets: len(targets)}, nil
	}

	if !found {
		b.detected.RecordCommand(key)
		return CommandResult{}, fmt.Errorf("%w: %s", ErrUnknownTarget, key)
	}
	if !entry.Type.Commandable() {
		return CommandResult{}, fmt.Errorf("%w: %s", ErrReadOnly, key)
	}

	if err := b.execute(ctx, entry, value, nil); err != nil {
		return CommandResult{}, err
	}
	return CommandResult{Entry: entry, Targets: 1}, nil
}

// execute decodes value for entry and submits it to the coalescer.
func (b *Bridge) execute(ctx context.Context, entry mapping.Entry, value string, transition *time.Duration) error {
	update, err := b.decoder.Decode(entry.ResourceID, value)
	if err != nil {
		return fmt.Errorf("%s: %w", entry.Name, err)
	}

	return b.coalescer.Submit(ctx, dispatch.Request{
		ResourceID: entry.ResourceID,
		Category:   entry.Type.ResourceType(),
		Name:       entry.Name,
		Update:     update,
		Transition: transition,
	})
}

// startSequence sends value to every target in the background, spaced by
// the configured sequence spacing and without transitions.
func (b *Bridge) startSequence(targets []mapping.Entry, value string) error {
	if b.ctx == nil || b.ctx.Err() != nil {
		return dispatch.ErrNotRunning
	}

	b.logger.Info("starting sequence", "targets", len(targets), logging.CategoryKey, logging.CategoryLight)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.runSequence(b.ctx, targets, value)
	}()
	return nil
}

func (b *Bridge) runSequence(ctx context.Context, targets []mapping.Entry, value string) {
	var instant time.Duration
	spacing := b.sync.SequenceSpacing()

	for i, target := range targets {
		if err := b.execute(ctx, target, value, &instant); err != nil {
			b.logger.Warn("sequence step failed", "name", target.Name, "error", err, logging.CategoryKey, logging.CategoryLight)
		}
		if i == len(targets)-1 {
			return
		}

		timer := time.NewTimer(spacing)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
