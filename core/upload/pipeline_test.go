package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"muselib/core/metadata"
	"muselib/model"
	"muselib/repository"
	"muselib/storage"
)

// fakeRepo records inserts and serves duplicate checks from a title set.
type fakeRepo struct {
	existing    map[string]bool
	checkErrAt  int // fail the Nth duplicate check (1-based), 0 = never
	checks      int
	failInserts map[string]bool
	inserted    []model.Track
	nextID      int64
}

func (f *fakeRepo) GetByTitle(ctx context.Context, title string) (*model.Track, error) {
	f.checks++
	if f.checkErrAt != 0 && f.checks >= f.checkErrAt {
		return nil, errors.New("backend down")
	}
	if f.existing[title] {
		return &model.Track{ID: 1, Title: title}, nil
	}
	return nil, fmt.Errorf("track %q: %w", title, repository.ErrNotFound)
}

func (f *fakeRepo) Create(ctx context.Context, track *model.Track) error {
	if f.failInserts[track.Title] {
		return errors.New("insert rejected")
	}
	f.nextID++
	track.ID = f.nextID
	f.inserted = append(f.inserted, *track)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id int64) (*model.Track, error) { panic("unused") }
func (f *fakeRepo) ListPage(ctx context.Context, offset, limit int) ([]model.Track, error) {
	panic("unused")
}
func (f *fakeRepo) ListByField(ctx context.Context, field string, value interface{}) ([]model.Track, error) {
	panic("unused")
}
func (f *fakeRepo) ListArtists(ctx context.Context) ([]string, error) { panic("unused") }
func (f *fakeRepo) Search(ctx context.Context, pattern string) ([]model.Track, error) {
	panic("unused")
}
func (f *fakeRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	panic("unused")
}
func (f *fakeRepo) Delete(ctx context.Context, id int64) error { panic("unused") }

// fakeBlobs counts puts per kind and can fail selectively.
type fakeBlobs struct {
	puts        map[storage.BlobKind]int
	failArt     bool
	failAudioAt int // fail the Nth audio put (1-based), 0 = never
}

func (f *fakeBlobs) Put(ctx context.Context, kind storage.BlobKind, contentType string, data []byte) (string, error) {
	if f.puts == nil {
		f.puts = make(map[storage.BlobKind]int)
	}
	f.puts[kind]++
	if kind == storage.BlobArt && f.failArt {
		return "", errors.New("art upload failed")
	}
	if kind == storage.BlobAudio && f.failAudioAt == f.puts[kind] {
		return "", errors.New("audio upload failed")
	}
	return fmt.Sprintf("http://blobs/%s/obj-%d", kind, f.puts[kind]), nil
}

func (f *fakeBlobs) Remove(ctx context.Context, blobURL string) error { return nil }
func (f *fakeBlobs) Get(ctx context.Context, objectPath string) (*storage.Blob, error) {
	panic("unused")
}

// fakeExtractor derives metadata from the file name: "title|artist|album"
// with optional "+art" marking embedded art, or fails for "corrupt".
type fakeExtractor struct{}

func (fakeExtractor) Extract(r io.ReadSeeker, contentType string) (*metadata.Metadata, error) {
	if !strings.HasPrefix(contentType, "audio/") {
		return nil, metadata.ErrInvalidInput
	}

	data, _ := io.ReadAll(r)
	name := string(data)
	if name == "corrupt" {
		return nil, metadata.ErrUnextractable
	}

	hasArt := strings.HasSuffix(name, "+art")
	name = strings.TrimSuffix(name, "+art")

	parts := strings.Split(name, "|")
	meta := &metadata.Metadata{Title: parts[0]}
	if len(parts) > 1 {
		meta.Artists = strings.Split(parts[1], ";")
	}
	if len(parts) > 2 {
		meta.Album = parts[2]
	}
	if hasArt {
		meta.Picture = &metadata.Picture{Data: []byte{0xFF}, MIMEType: "image/jpeg"}
	}
	return meta, nil
}

func audioInput(spec string) Input {
	return Input{FileName: spec + ".mp3", ContentType: "audio/mpeg", Data: []byte(spec)}
}

func newTestPipeline(repo *fakeRepo, blobs *fakeBlobs) *Pipeline {
	return NewPipeline(repo, blobs, fakeExtractor{})
}

func TestStageSkipsDuplicateTitle(t *testing.T) {
	repo := &fakeRepo{existing: map[string]bool{"two": true}}
	blobs := &fakeBlobs{}
	p := newTestPipeline(repo, blobs)

	staged, err := p.Stage(context.Background(), []Input{
		audioInput("one"), audioInput("two"), audioInput("three"),
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(staged) != 2 {
		t.Fatalf("staged %d entries, want 2", len(staged))
	}
	if staged[0].Title != "one" || staged[1].Title != "three" {
		t.Fatalf("staged wrong entries: %q, %q", staged[0].Title, staged[1].Title)
	}

	committed, err := p.Commit(context.Background(), staged)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed != 2 {
		t.Fatalf("committed %d, want 2", committed)
	}
}

func TestStageSkipsNonAudioAndCorrupt(t *testing.T) {
	repo := &fakeRepo{}
	p := newTestPipeline(repo, &fakeBlobs{})

	staged, err := p.Stage(context.Background(), []Input{
		{FileName: "notes.txt", ContentType: "text/plain", Data: []byte("good")},
		audioInput("corrupt"),
		audioInput("good"),
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(staged) != 1 || staged[0].Title != "good" {
		t.Fatalf("staged = %+v, want only %q", staged, "good")
	}
}

func TestStageAbortsOnDuplicateCheckFailure(t *testing.T) {
	// The duplicate check for file 2 fails outright; that is a backend
	// problem, so the remaining batch is abandoned.
	repo := &fakeRepo{checkErrAt: 2}
	p := newTestPipeline(repo, &fakeBlobs{})

	staged, err := p.Stage(context.Background(), []Input{
		audioInput("one"), audioInput("two"), audioInput("three"),
	})
	if err == nil {
		t.Fatal("expected batch-fatal error from failed duplicate check")
	}
	if len(staged) != 1 || staged[0].Title != "one" {
		t.Fatalf("staged = %+v, want only the entry staged before the failure", staged)
	}
	if repo.checks != 2 {
		t.Fatalf("duplicate checks = %d, want 2 (file 3 never reached)", repo.checks)
	}
}

func TestStageProceedsWithoutCoverOnArtFailure(t *testing.T) {
	repo := &fakeRepo{}
	blobs := &fakeBlobs{failArt: true}
	p := newTestPipeline(repo, blobs)

	staged, err := p.Stage(context.Background(), []Input{audioInput("one|a|b+art")})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(staged) != 1 {
		t.Fatalf("staged %d entries, want 1", len(staged))
	}
	if staged[0].CoverURL != "" {
		t.Fatalf("expected empty cover URL after art upload failure, got %q", staged[0].CoverURL)
	}
}

func TestStageUploadsEmbeddedArt(t *testing.T) {
	repo := &fakeRepo{}
	blobs := &fakeBlobs{}
	p := newTestPipeline(repo, blobs)

	staged, err := p.Stage(context.Background(), []Input{audioInput("one|First;Second|Album+art")})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if staged[0].CoverURL == "" {
		t.Fatal("expected cover URL for file with embedded art")
	}
	if staged[0].Artist != "First, Second" {
		t.Fatalf("artist = %q, want joined display string", staged[0].Artist)
	}
	if blobs.puts[storage.BlobArt] != 1 {
		t.Fatalf("art puts = %d, want 1", blobs.puts[storage.BlobArt])
	}
}

func TestCommitAbortsOnAudioUploadFailure(t *testing.T) {
	repo := &fakeRepo{}
	blobs := &fakeBlobs{failAudioAt: 2}
	p := newTestPipeline(repo, blobs)

	staged, err := p.Stage(context.Background(), []Input{
		audioInput("one"), audioInput("two"), audioInput("three"),
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	committed, err := p.Commit(context.Background(), staged)
	if err == nil {
		t.Fatal("expected blocking error from failed audio upload")
	}
	if committed != 1 {
		t.Fatalf("committed %d, want 1 (items before the failure)", committed)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].Title != "one" {
		t.Fatalf("inserted = %+v, want only %q", repo.inserted, "one")
	}
	// Item 3 must not have been attempted.
	if blobs.puts[storage.BlobAudio] != 2 {
		t.Fatalf("audio puts = %d, want 2", blobs.puts[storage.BlobAudio])
	}
}

func TestCommitContinuesPastInsertFailure(t *testing.T) {
	repo := &fakeRepo{failInserts: map[string]bool{"two": true}}
	p := newTestPipeline(repo, &fakeBlobs{})

	staged, err := p.Stage(context.Background(), []Input{
		audioInput("one"), audioInput("two"), audioInput("three"),
	})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}

	committed, err := p.Commit(context.Background(), staged)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed != 2 {
		t.Fatalf("committed %d, want 2", committed)
	}
	if len(repo.inserted) != 2 {
		t.Fatalf("inserted %d records, want 2", len(repo.inserted))
	}
}

func TestCommittedTrackCarriesURLs(t *testing.T) {
	repo := &fakeRepo{}
	p := newTestPipeline(repo, &fakeBlobs{})

	staged, err := p.Stage(context.Background(), []Input{audioInput("one|Artist|Album+art")})
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := p.Commit(context.Background(), staged); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	track := repo.inserted[0]
	if track.MusicURL == "" {
		t.Fatal("committed track has no music URL")
	}
	if track.CoverURL != staged[0].CoverURL {
		t.Fatalf("cover URL mismatch: %q vs %q", track.CoverURL, staged[0].CoverURL)
	}
	if track.Album != "Album" {
		t.Fatalf("album = %q, want %q", track.Album, "Album")
	}
}
