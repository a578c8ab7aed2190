package model

import "time"

// Track represents an audio track in the music library.
type Track struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"size:255;index"`
	Artist    string    `json:"artist" gorm:"size:255;index"`
	Album     string    `json:"album" gorm:"size:255"`
	MusicURL  string    `json:"music_url" gorm:"column:music_url;size:512"`
	CoverURL  string    `json:"cover_url" gorm:"column:cover_url;size:512"` // Empty when no embedded art was found
	Pin       int8      `json:"pin"`                                       // 1=favorite, 0=not
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName keeps the legacy table name used by existing deployments.
func (Track) TableName() string {
	return "music"
}

// Favorite reports whether the track is pinned.
func (t *Track) Favorite() bool {
	return t.Pin == 1
}
