package service

import (
	"context"
	"fmt"

	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
)

type conflictTracker struct {
	store store.Store
	log   *logger.Logger
}

// NewConflicts builds the global conflict tracker. The flag it maintains
// gates whether a new sync round may proceed.
func NewConflicts(st store.Store, log *logger.Logger) Conflicts {
	return &conflictTracker{store: st, log: log.Scope("conflicts")}
}

func (c *conflictTracker) Recalculate(ctx context.Context) error {
	conflicted, err := c.store.Content().Conflicted(ctx)
	if err != nil {
		return fmt.Errorf("list conflicted content: %w", err)
	}

	has := len(conflicted) > 0
	if err := c.store.KV().SetHasConflicts(ctx, has); err != nil {
		return fmt.Errorf("persist conflict flag: %w", err)
	}
	if has {
		c.log.Info().Int("count", len(conflicted)).Msg("unresolved conflicts remain")
	}
	return nil
}

func (c *conflictTracker) Check(ctx context.Context) (bool, error) {
	has, err := c.store.KV().HasConflicts(ctx)
	if err != nil {
		return false, fmt.Errorf("read conflict flag: %w", err)
	}
	return has, nil
}

func (c *conflictTracker) Mark(ctx context.Context) error {
	if err := c.store.KV().SetHasConflicts(ctx, true); err != nil {
		return fmt.Errorf("persist conflict flag: %w", err)
	}
	return nil
}
