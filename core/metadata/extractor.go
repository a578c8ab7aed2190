package metadata

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dhowden/tag"
)

var (
	// ErrInvalidInput is returned when the declared media type is not
	// audio. No parse attempt is made in that case.
	ErrInvalidInput = errors.New("not an audio file")

	// ErrUnextractable is returned when the container cannot be parsed.
	// Callers treat this as "proceed with empty metadata", never as a
	// fatal condition.
	ErrUnextractable = errors.New("metadata unextractable")
)

// Picture is an embedded cover image.
type Picture struct {
	Data     []byte
	MIMEType string
}

// Metadata is the structured result of tag extraction.
type Metadata struct {
	Title   string
	Artists []string
	Album   string
	Picture *Picture // nil when no embedded art was found
}

// DisplayArtist joins multi-valued artists into a single display string.
func (m *Metadata) DisplayArtist() string {
	return strings.Join(m.Artists, ", ")
}

// Extractor reads embedded tags from an audio blob.
type Extractor interface {
	Extract(r io.ReadSeeker, contentType string) (*Metadata, error)
}

// tagExtractor implements Extractor with dhowden/tag.
type tagExtractor struct{}

// NewExtractor returns the tag-based extractor.
func NewExtractor() Extractor {
	return tagExtractor{}
}

func (tagExtractor) Extract(r io.ReadSeeker, contentType string) (*Metadata, error) {
	if !strings.HasPrefix(contentType, "audio/") {
		return nil, fmt.Errorf("%w: declared type %q", ErrInvalidInput, contentType)
	}

	m, err := tag.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnextractable, err)
	}

	meta := &Metadata{
		Title:   m.Title(),
		Artists: splitArtists(m.Artist()),
		Album:   m.Album(),
	}

	if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
		mimeType := pic.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		meta.Picture = &Picture{Data: pic.Data, MIMEType: mimeType}
	}

	return meta, nil
}

// splitArtists breaks a multi-valued artist tag on the separators common
// in ID3/Vorbis fields. A plain single artist passes through unchanged.
func splitArtists(artist string) []string {
	if artist == "" {
		return nil
	}

	fields := strings.FieldsFunc(artist, func(r rune) bool {
		return r == ';' || r == '\x00'
	})

	artists := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			artists = append(artists, f)
		}
	}
	return artists
}
