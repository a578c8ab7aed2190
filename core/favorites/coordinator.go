package favorites

import (
	"context"
	"fmt"

	"muselib/logger"
	"muselib/repository"
)

// LocalState is the client-held track list the coordinator reconciles
// against the backend. catalog.Loader satisfies it.
type LocalState interface {
	Favorite(id int64) (int8, bool)
	SetFavorite(id int64, pin int8)
}

// Coordinator flips a track's favorite flag optimistically: the local
// value changes before the backend write, and is rolled back to the
// pre-toggle value if the write fails. Toggles on distinct ids are
// independent; rapid re-toggle of the same id is last-write-wins.
type Coordinator struct {
	repo  repository.TrackRepository
	state LocalState
}

// NewCoordinator creates a coordinator over the given local state.
func NewCoordinator(repo repository.TrackRepository, state LocalState) *Coordinator {
	return &Coordinator{repo: repo, state: state}
}

// Toggle flips the favorite flag of the given track and returns the new
// value. The local list must contain the track.
func (c *Coordinator) Toggle(ctx context.Context, id int64) (int8, error) {
	current, ok := c.state.Favorite(id)
	if !ok {
		return 0, fmt.Errorf("track %d: %w", id, repository.ErrNotFound)
	}

	var flipped int8
	if current == 0 {
		flipped = 1
	}

	c.state.SetFavorite(id, flipped)

	if err := c.repo.UpdateFields(ctx, id, map[string]interface{}{"pin": flipped}); err != nil {
		c.state.SetFavorite(id, current)
		logger.Error("Failed to persist favorite toggle, reverted",
			logger.Int64("trackId", id),
			logger.ErrorField(err))
		return current, err
	}

	return flipped, nil
}
