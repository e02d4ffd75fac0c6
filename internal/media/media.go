// Package media manages the promotional video catalog shared by all users.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/apperr"
	"github.com/user/cesto-ofertas-go/internal/events"
	"github.com/user/cesto-ofertas-go/internal/metrics"
	"github.com/user/cesto-ofertas-go/internal/model"
	"github.com/user/cesto-ofertas-go/internal/scraper"
	"github.com/user/cesto-ofertas-go/internal/store"
)

const (
	// DefaultThumbnail is used when an admin publishes a video without one
	DefaultThumbnail = "https://via.placeholder.com/320x180/f3f4f6/9ca3af?text=Video"
	// DefaultDuration is assumed when the duration is unknown
	DefaultDuration = 120
)

// Download describes how a client should fetch a video
type Download struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	Size     string `json:"size"`
	Duration string `json:"duration"`
}

// Library is the global video catalog
type Library struct {
	store  store.Store
	events events.Publisher
	now    func() time.Time
	newID  func() string
}

// NewLibrary creates a library over s
func NewLibrary(s store.Store, publisher events.Publisher) *Library {
	if publisher == nil {
		publisher = events.NewBus()
	}
	return &Library{store: s, events: publisher, now: time.Now, newID: uuid.NewString}
}

// List returns every video, most recent first
func (l *Library) List(ctx context.Context, s *model.Session) ([]model.VideoAsset, error) {
	if err := apperr.RequireSession(s); err != nil {
		return nil, err
	}
	return l.all(ctx)
}

func (l *Library) all(ctx context.Context) ([]model.VideoAsset, error) {
	return store.Load[model.VideoAsset](ctx, l.store, store.VideosKey)
}

// Get returns one video or apperr.ErrNotFound
func (l *Library) Get(ctx context.Context, s *model.Session, id string) (*model.VideoAsset, error) {
	videos, err := l.List(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range videos {
		if videos[i].ID == id {
			return &videos[i], nil
		}
	}
	return nil, fmt.Errorf("video %s: %w", id, apperr.ErrNotFound)
}

// Create publishes a video. Only admins may do so.
func (l *Library) Create(ctx context.Context, s *model.Session, in model.VideoAssetInput) (*model.VideoAsset, error) {
	if err := apperr.RequireAdmin(s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Invalid("title", "title is required")
	}
	if err := scraper.ValidateURL(in.FileURL); err != nil {
		return nil, apperr.Invalid("file_url", "a video file URL is required")
	}
	if in.SizeBytes < 0 {
		return nil, apperr.Invalid("file_size", "file size must not be negative")
	}
	if in.DurationSeconds < 0 {
		return nil, apperr.Invalid("duration", "duration must not be negative")
	}

	now := l.now()
	v := model.VideoAsset{
		ID:              l.newID(),
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		FileURL:         in.FileURL,
		ThumbnailURL:    in.ThumbnailURL,
		SizeBytes:       in.SizeBytes,
		DurationSeconds: in.DurationSeconds,
		CreatedBy:       s.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if v.ThumbnailURL == "" {
		v.ThumbnailURL = DefaultThumbnail
	}
	if v.DurationSeconds == 0 {
		v.DurationSeconds = DefaultDuration
	}

	videos, err := store.Update(ctx, l.store, store.VideosKey, func(all []model.VideoAsset) ([]model.VideoAsset, error) {
		return append([]model.VideoAsset{v}, all...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create video: %w", err)
	}
	metrics.SetVideoCount(len(videos))

	log.Info().Str("video", v.ID).Str("title", v.Title).Str("admin", s.UserID).Msg("Video published")
	if err := l.events.Publish(ctx, events.Event{Type: events.TypeVideoPublished, UserID: s.UserID, Data: v}); err != nil {
		log.Warn().Err(err).Msg("Failed to publish event")
	}
	return &v, nil
}

// Delete removes a video. Only admins may do so; unknown ids are a no-op.
func (l *Library) Delete(ctx context.Context, s *model.Session, id string) error {
	if err := apperr.RequireAdmin(s); err != nil {
		return err
	}
	videos, err := store.Update(ctx, l.store, store.VideosKey, func(all []model.VideoAsset) ([]model.VideoAsset, error) {
		kept := make([]model.VideoAsset, 0, len(all))
		for _, v := range all {
			if v.ID != id {
				kept = append(kept, v)
			}
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	metrics.SetVideoCount(len(videos))
	return nil
}

// Download returns the file URL and the suggested file name for a video
func (l *Library) Download(ctx context.Context, s *model.Session, id string) (*Download, error) {
	v, err := l.Get(ctx, s, id)
	if err != nil {
		return nil, err
	}
	log.Info().Str("video", v.ID).Str("user", s.UserID).Msg("Video download requested")
	return &Download{
		URL:      v.FileURL,
		FileName: FileName(v.Title),
		Size:     FormatSize(v.SizeBytes),
		Duration: FormatDuration(v.DurationSeconds),
	}, nil
}

// Count returns the number of videos
func (l *Library) Count(ctx context.Context) (int, error) {
	videos, err := l.all(ctx)
	if err != nil {
		return 0, err
	}
	return len(videos), nil
}

// FileName derives a download file name from a title
func FileName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "video"
	}
	return name + ".mp4"
}

// FormatSize renders a byte count with binary units, e.g. "43 MiB"
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatDuration renders seconds as m:ss
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
