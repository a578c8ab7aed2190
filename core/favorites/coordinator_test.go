package favorites

import (
	"context"
	"errors"
	"testing"

	"muselib/model"
	"muselib/repository"
)

// memoryState is a minimal LocalState over a map.
type memoryState struct {
	pins map[int64]int8
}

func (m *memoryState) Favorite(id int64) (int8, bool) {
	pin, ok := m.pins[id]
	return pin, ok
}

func (m *memoryState) SetFavorite(id int64, pin int8) {
	m.pins[id] = pin
}

// updateRepo records UpdateFields calls and can fail on demand.
type updateRepo struct {
	fail    bool
	updates []map[string]interface{}
}

func (r *updateRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	if r.fail {
		return errors.New("backend unreachable")
	}
	r.updates = append(r.updates, fields)
	return nil
}

func (r *updateRepo) Create(ctx context.Context, track *model.Track) error { panic("unused") }
func (r *updateRepo) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	panic("unused")
}
func (r *updateRepo) GetByTitle(ctx context.Context, title string) (*model.Track, error) {
	panic("unused")
}
func (r *updateRepo) ListPage(ctx context.Context, offset, limit int) ([]model.Track, error) {
	panic("unused")
}
func (r *updateRepo) ListByField(ctx context.Context, field string, value interface{}) ([]model.Track, error) {
	panic("unused")
}
func (r *updateRepo) ListArtists(ctx context.Context) ([]string, error) { panic("unused") }
func (r *updateRepo) Search(ctx context.Context, pattern string) ([]model.Track, error) {
	panic("unused")
}
func (r *updateRepo) Delete(ctx context.Context, id int64) error { panic("unused") }

func TestToggleFlipsAndPersists(t *testing.T) {
	repo := &updateRepo{}
	state := &memoryState{pins: map[int64]int8{7: 0}}
	c := NewCoordinator(repo, state)

	pin, err := c.Toggle(context.Background(), 7)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if pin != 1 {
		t.Fatalf("pin = %d, want 1", pin)
	}
	if got, _ := state.Favorite(7); got != 1 {
		t.Fatalf("local pin = %d, want 1", got)
	}
	if len(repo.updates) != 1 || repo.updates[0]["pin"] != int8(1) {
		t.Fatalf("updates = %v, want one update with pin=1", repo.updates)
	}

	// Toggle back.
	pin, err = c.Toggle(context.Background(), 7)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if pin != 0 {
		t.Fatalf("pin = %d, want 0", pin)
	}
}

func TestToggleRevertsOnBackendFailure(t *testing.T) {
	repo := &updateRepo{fail: true}
	state := &memoryState{pins: map[int64]int8{7: 0}}
	c := NewCoordinator(repo, state)

	pin, err := c.Toggle(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error from failed update")
	}
	if pin != 0 {
		t.Fatalf("returned pin = %d, want reverted 0", pin)
	}
	if got, _ := state.Favorite(7); got != 0 {
		t.Fatalf("local pin = %d, want reverted 0", got)
	}
}

func TestToggleUnknownTrack(t *testing.T) {
	c := NewCoordinator(&updateRepo{}, &memoryState{pins: map[int64]int8{}})

	_, err := c.Toggle(context.Background(), 99)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
