// Package photos copies externally hosted place photos into durable
// object storage.
package photos

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/pkg/google"
	"github.com/sells-group/place-import/pkg/objectstore"
)

// DefaultMaxPhotos bounds how many photos are migrated per place.
const DefaultMaxPhotos = 5

// ProgressFunc is called after each photo attempt with the 1-based attempt
// number and the number of photos being attempted.
type ProgressFunc func(current, total int)

// Config controls migration.
type Config struct {
	MaxPhotos        int
	MaxWidthPx       int
	DownloadInterval time.Duration
}

// Observer receives per-photo outcomes. It may be nil.
type Observer interface {
	PhotoOutcome(outcome string)
}

// Migrator downloads photos and re-uploads them to storage.
type Migrator struct {
	source   google.Client
	store    objectstore.Store
	limiter  *rate.Limiter
	cfg      Config
	observer Observer
	newKey   func(placeID, ext string) string
}

// NewMigrator creates a Migrator. store may be nil when only dry runs are
// performed.
func NewMigrator(source google.Client, store objectstore.Store, cfg Config) *Migrator {
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = DefaultMaxPhotos
	}
	limit := rate.Inf
	if cfg.DownloadInterval > 0 {
		limit = rate.Every(cfg.DownloadInterval)
	}
	return &Migrator{
		source:  source,
		store:   store,
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		newKey: func(placeID, ext string) string {
			return fmt.Sprintf("places/%s/%s%s", placeID, uuid.NewString(), ext)
		},
	}
}

// WithObserver attaches an outcome observer.
func (m *Migrator) WithObserver(o Observer) *Migrator {
	m.observer = o
	return m
}

// Migrate copies up to MaxPhotos of refs into storage and returns their
// permanent URLs in input order. Failed photos are skipped. In dry-run mode
// every photo is downloaded to check it is reachable, nothing is uploaded,
// and the result is empty.
func (m *Migrator) Migrate(ctx context.Context, placeID string, refs []model.PhotoRef, dryRun bool, progress ProgressFunc) ([]string, error) {
	if len(refs) > m.cfg.MaxPhotos {
		refs = refs[:m.cfg.MaxPhotos]
	}
	log := zap.L().With(zap.String("place_id", placeID), zap.Bool("dry_run", dryRun))

	urls := make([]string, 0, len(refs))
	for i, ref := range refs {
		if err := m.limiter.Wait(ctx); err != nil {
			return urls, err
		}

		url, err := m.migrateOne(ctx, placeID, ref, dryRun)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return urls, ctx.Err()
			}
			log.Warn("photos: skipping photo", zap.String("photo", ref.Name), zap.Error(err))
			m.record("failed")
		case dryRun:
			m.record("validated")
		default:
			urls = append(urls, url)
			m.record("uploaded")
		}

		if progress != nil {
			progress(i+1, len(refs))
		}
	}

	log.Info("photos: migration finished", zap.Int("attempted", len(refs)), zap.Int("uploaded", len(urls)))
	if dryRun {
		return []string{}, nil
	}
	return urls, nil
}

func (m *Migrator) migrateOne(ctx context.Context, placeID string, ref model.PhotoRef, dryRun bool) (string, error) {
	media, err := m.source.PhotoMedia(ctx, ref.Name, m.cfg.MaxWidthPx)
	if err != nil {
		return "", eris.Wrap(err, "photos: download")
	}
	if len(media.Data) == 0 {
		return "", eris.Errorf("photos: empty body for %s", ref.Name)
	}
	if dryRun {
		return "", nil
	}
	if m.store == nil {
		return "", eris.New("photos: no storage configured")
	}
	url, err := m.store.Put(ctx, m.newKey(placeID, extension(media.ContentType)), media.Data, media.ContentType)
	if err != nil {
		return "", eris.Wrap(err, "photos: upload")
	}
	return url, nil
}

func (m *Migrator) record(outcome string) {
	if m.observer != nil {
		m.observer.PhotoOutcome(outcome)
	}
}

func extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".jpg"
	}
	switch strings.ToLower(mediaType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
