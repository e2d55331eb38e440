package audio

import (
	"context"
	"fmt"

	ioutils "github.com/handiism/halftunes/internal/io"
	"github.com/handiism/halftunes/internal/logging"
	"github.com/handiism/halftunes/internal/model"
	"github.com/rs/zerolog"
)

// ArtworkFetcher downloads cover art.
type ArtworkFetcher interface {
	DownloadBytes(ctx context.Context, url string) ([]byte, error)
}

// FinishConfig selects the post-processing steps applied to completed files.
type FinishConfig struct {
	ModifyTags      bool
	SaveCoverArt    bool
	CoverArtMaxSize int
}

// Finisher post-processes completed downloads: it writes ID3 tags and
// embeds cover art into MP3 files. Other containers are left untouched.
type Finisher struct {
	fetcher ArtworkFetcher
	images  *ioutils.ImageService
	tagger  *Tagger
	config  FinishConfig
	log     zerolog.Logger
}

// NewFinisher creates a Finisher. fetcher may be nil when cover art is
// disabled.
func NewFinisher(fetcher ArtworkFetcher, images *ioutils.ImageService, cfg FinishConfig) *Finisher {
	tagCfg := DefaultTagConfig()
	tagCfg.ModifyTags = cfg.ModifyTags
	return &Finisher{
		fetcher: fetcher,
		images:  images,
		tagger:  NewTagger(tagCfg),
		config:  cfg,
		log:     logging.Get("audio"),
	}
}

// Finish post-processes the file at path, downloaded for track. A cover art
// failure is logged and the tags are still written.
func (f *Finisher) Finish(ctx context.Context, track *model.Track, path string) error {
	if !IsTaggable(path) {
		f.log.Debug().Str("path", path).Msg("Not an MP3 file, skipping tags")
		return nil
	}

	artwork := f.artwork(ctx, track)
	if !f.config.ModifyTags && artwork == nil {
		return nil
	}

	if err := f.tagger.SaveTags(path, track, artwork); err != nil {
		return fmt.Errorf("tagging %s: %w", path, err)
	}
	f.log.Debug().Str("path", path).Bool("artwork", artwork != nil).Msg("Tags saved")
	return nil
}

func (f *Finisher) artwork(ctx context.Context, track *model.Track) []byte {
	if !f.config.SaveCoverArt || f.fetcher == nil || f.images == nil || !track.HasArtwork() {
		return nil
	}

	data, err := f.fetcher.DownloadBytes(ctx, track.ArtworkURL)
	if err != nil {
		f.log.Warn().Err(err).Str("url", track.ArtworkURL).Msg("Failed to download cover art")
		return nil
	}

	jpeg, err := f.images.PrepareCoverArt(ctx, data, f.config.CoverArtMaxSize)
	if err != nil {
		f.log.Warn().Err(err).Str("url", track.ArtworkURL).Msg("Failed to prepare cover art")
		return nil
	}
	return jpeg
}
