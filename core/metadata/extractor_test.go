package metadata

import (
	"bytes"
	"errors"
	"testing"
)

// id3v1File builds a blob carrying an ID3v1 trailer, the simplest tag
// format dhowden/tag can parse.
func id3v1File(title, artist, album string) []byte {
	buf := make([]byte, 512)
	tag := buf[len(buf)-128:]
	copy(tag[0:3], "TAG")
	copy(tag[3:33], title)
	copy(tag[33:63], artist)
	copy(tag[63:93], album)
	return buf
}

func TestExtractRejectsNonAudio(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(bytes.NewReader(id3v1File("a", "b", "c")), "image/png")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestExtractUnparseableAudio(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(bytes.NewReader(make([]byte, 256)), "audio/mpeg")
	if !errors.Is(err, ErrUnextractable) {
		t.Fatalf("err = %v, want ErrUnextractable", err)
	}
}

func TestExtractReadsTags(t *testing.T) {
	e := NewExtractor()

	meta, err := e.Extract(bytes.NewReader(id3v1File("Blue Train", "John Coltrane", "Blue Train")), "audio/mpeg")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Title != "Blue Train" {
		t.Errorf("Title = %q, want %q", meta.Title, "Blue Train")
	}
	if meta.DisplayArtist() != "John Coltrane" {
		t.Errorf("DisplayArtist = %q, want %q", meta.DisplayArtist(), "John Coltrane")
	}
	if meta.Album != "Blue Train" {
		t.Errorf("Album = %q, want %q", meta.Album, "Blue Train")
	}
	if meta.Picture != nil {
		t.Errorf("Picture = %v, want nil", meta.Picture)
	}
}

func TestExtractSplitsMultiValuedArtist(t *testing.T) {
	e := NewExtractor()

	meta, err := e.Extract(bytes.NewReader(id3v1File("Duet", "First; Second", "Live")), "audio/mpeg")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got := meta.DisplayArtist(); got != "First, Second" {
		t.Errorf("DisplayArtist = %q, want %q", got, "First, Second")
	}
	if len(meta.Artists) != 2 {
		t.Errorf("Artists = %v, want two entries", meta.Artists)
	}
}

func TestSplitArtists(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Solo", 1},
		{"A;B", 2},
		{"A\x00B\x00C", 3},
		{"; ;", 0},
	}
	for _, c := range cases {
		if got := splitArtists(c.in); len(got) != c.want {
			t.Errorf("splitArtists(%q) = %v, want %d entries", c.in, got, c.want)
		}
	}
}
