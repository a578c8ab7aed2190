package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"muselib/core/metadata"
	"muselib/logger"
	"muselib/model"
	"muselib/repository"
	"muselib/storage"
)

// Input is a raw file handed to the staging phase.
type Input struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Pipeline runs the two-phase upload flow: Stage extracts metadata and
// cover art for user review, Commit writes the audio blobs and records.
// Files are processed strictly sequentially in both phases; file N is
// fully resolved before file N+1 begins.
type Pipeline struct {
	repo      repository.TrackRepository
	blobs     storage.BlobStore
	extractor metadata.Extractor
}

// NewPipeline creates an upload pipeline.
func NewPipeline(repo repository.TrackRepository, blobs storage.BlobStore, extractor metadata.Extractor) *Pipeline {
	return &Pipeline{repo: repo, blobs: blobs, extractor: extractor}
}

// Stage resolves each input into a PendingUpload. Per-file failures
// (wrong media type, unparseable container, failed art upload) skip or
// degrade that file only. A duplicate title silently skips the file. A
// duplicate *check* that fails for any reason other than "not found"
// aborts the remaining batch: that is a backend problem, not a per-item
// one. Entries staged before the abort are returned alongside the error.
func (p *Pipeline) Stage(ctx context.Context, inputs []Input) ([]model.PendingUpload, error) {
	staged := make([]model.PendingUpload, 0, len(inputs))

	for _, in := range inputs {
		if !strings.HasPrefix(in.ContentType, "audio/") {
			logger.Warn("Skipping non-audio file",
				logger.String("file", in.FileName),
				logger.String("contentType", in.ContentType))
			continue
		}

		meta, err := p.extractor.Extract(bytes.NewReader(in.Data), in.ContentType)
		if err != nil {
			logger.Warn("Skipping file with unreadable tags",
				logger.String("file", in.FileName),
				logger.ErrorField(err))
			continue
		}

		if _, err := p.repo.GetByTitle(ctx, meta.Title); err == nil {
			logger.Info("Track already in library, skipping",
				logger.String("title", meta.Title),
				logger.String("file", in.FileName))
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return staged, fmt.Errorf("duplicate check failed for %q: %w", in.FileName, err)
		}

		coverURL := ""
		if meta.Picture != nil {
			coverURL, err = p.blobs.Put(ctx, storage.BlobArt, meta.Picture.MIMEType, meta.Picture.Data)
			if err != nil {
				// The track is still usable without art.
				logger.Warn("Cover art upload failed, staging without cover",
					logger.String("file", in.FileName),
					logger.ErrorField(err))
				coverURL = ""
			}
		}

		staged = append(staged, model.PendingUpload{
			FileName:    in.FileName,
			ContentType: in.ContentType,
			Data:        in.Data,
			Title:       meta.Title,
			Artist:      meta.DisplayArtist(),
			Album:       meta.Album,
			CoverURL:    coverURL,
		})
	}

	return staged, nil
}

// Commit uploads each staged entry's audio blob and inserts its record.
// A failed audio upload aborts the remaining batch immediately: a record
// without playable audio is worse than an incomplete batch. A failed
// insert is reported and the batch continues. The returned count is the
// number of fully committed tracks.
func (p *Pipeline) Commit(ctx context.Context, staged []model.PendingUpload) (int, error) {
	committed := 0

	for i := range staged {
		entry := &staged[i]

		musicURL, err := p.blobs.Put(ctx, storage.BlobAudio, entry.ContentType, entry.Data)
		if err != nil {
			return committed, fmt.Errorf("audio upload failed for %q: %w", entry.DisplayTitle(), err)
		}

		track := &model.Track{
			Title:    entry.Title,
			Artist:   entry.Artist,
			Album:    entry.Album,
			MusicURL: musicURL,
			CoverURL: entry.CoverURL,
		}
		if err := p.repo.Create(ctx, track); err != nil {
			logger.Error("Failed to insert track record",
				logger.String("title", entry.DisplayTitle()),
				logger.ErrorField(err))
			continue
		}

		committed++
		logger.Info("Track committed",
			logger.Int64("trackId", track.ID),
			logger.String("title", entry.DisplayTitle()))
	}

	return committed, nil
}
