package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"muselib/model"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a queried row does not exist. Callers
	// that probe for existence (duplicate checks) must treat this as a
	// valid outcome, not a failure.
	ErrNotFound = errors.New("track not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint.
	ErrDuplicate = errors.New("duplicate track")
)

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, id int64) (*model.Track, error)
	GetByTitle(ctx context.Context, title string) (*model.Track, error)
	ListPage(ctx context.Context, offset, limit int) ([]model.Track, error)
	ListByField(ctx context.Context, field string, value interface{}) ([]model.Track, error)
	ListArtists(ctx context.Context) ([]string, error)
	Search(ctx context.Context, pattern string) ([]model.Track, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
}

// listFields are the only columns ListByField accepts, to keep arbitrary
// input out of the column position of a query.
var listFields = map[string]string{
	"artist": "artist",
	"album":  "album",
	"title":  "title",
	"pin":    "pin",
}

// gormTrackRepository implements TrackRepository on MySQL via GORM.
type gormTrackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a new GORM-backed track repository.
func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// Create inserts a new track. The backend assigns the ID.
func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create track %q: %w", track.Title, ErrDuplicate)
		}
		return fmt.Errorf("failed to create track %q: %w", track.Title, err)
	}
	return nil
}

// GetByID retrieves a track by its ID.
func (r *gormTrackRepository) GetByID(ctx context.Context, id int64) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).First(&track, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("track %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query track %d: %w", id, err)
	}
	return &track, nil
}

// GetByTitle retrieves a track by exact title. Used for duplicate
// detection during uploads; a miss is ErrNotFound, anything else is a
// genuine query failure.
func (r *gormTrackRepository) GetByTitle(ctx context.Context, title string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Where("title = ?", title).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("track %q: %w", title, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query track by title %q: %w", title, err)
	}
	return &track, nil
}

// ListPage returns one page of tracks in descending ID order.
func (r *gormTrackRepository) ListPage(ctx context.Context, offset, limit int) ([]model.Track, error) {
	tracks := make([]model.Track, 0, limit)
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks (offset=%d limit=%d): %w", offset, limit, err)
	}
	return tracks, nil
}

// ListByField returns all tracks where field equals value, newest first.
func (r *gormTrackRepository) ListByField(ctx context.Context, field string, value interface{}) ([]model.Track, error) {
	column, ok := listFields[field]
	if !ok {
		return nil, fmt.Errorf("unsupported filter field %q", field)
	}

	tracks := make([]model.Track, 0)
	err := r.db.WithContext(ctx).
		Where(column+" = ?", value).
		Order("id DESC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks by %s: %w", field, err)
	}
	return tracks, nil
}

// ListArtists returns the distinct artist names in the library.
func (r *gormTrackRepository) ListArtists(ctx context.Context) ([]string, error) {
	artists := make([]string, 0)
	err := r.db.WithContext(ctx).
		Model(&model.Track{}).
		Distinct("artist").
		Order("artist").
		Pluck("artist", &artists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	return artists, nil
}

// Search performs a case-insensitive substring match over title, album
// and artist. An empty pattern yields an empty result set rather than
// the full catalog.
func (r *gormTrackRepository) Search(ctx context.Context, pattern string) ([]model.Track, error) {
	tracks := make([]model.Track, 0)
	if strings.TrimSpace(pattern) == "" {
		return tracks, nil
	}

	like := "%" + escapeLike(pattern) + "%"
	err := r.db.WithContext(ctx).
		Where("LOWER(title) LIKE LOWER(?) OR LOWER(album) LIKE LOWER(?) OR LOWER(artist) LIKE LOWER(?)",
			like, like, like).
		Order("id DESC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks for %q: %w", pattern, err)
	}
	return tracks, nil
}

// escapeLike neutralizes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// UpdateFields applies a partial update to a track. Returns ErrNotFound
// when the target row no longer exists.
func (r *gormTrackRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&model.Track{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update track %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Distinguish "row vanished" from "no-op same-value update".
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Track{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to verify track %d after update: %w", id, err)
		}
		if count == 0 {
			return fmt.Errorf("track %d: %w", id, ErrNotFound)
		}
	}
	return nil
}

// Delete removes a track row.
func (r *gormTrackRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&model.Track{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete track %d: %w", id, err)
	}
	return nil
}
