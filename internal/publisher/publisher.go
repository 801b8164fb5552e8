// Package publisher delivers scheduled units to their target platforms.
//
// The scheduler has already shaped each unit's payload for its platform, so
// Publish only maps the unit onto the platform's createPost call and returns
// the external reference. Every failure comes back classified as a
// platform-publish-failure; marking the unit failed is the caller's job.
package publisher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/services/platform"
	"reelcast/internal/store"
)

// Receipt is the external reference for a published unit.
type Receipt struct {
	ExternalID string
	URL        string
}

// Publisher performs per-platform delivery.
type Publisher struct {
	registry *Registry
	logger   *slog.Logger
}

// New constructs a publisher over registry.
func New(registry *Registry, logger *slog.Logger) *Publisher {
	return &Publisher{registry: registry, logger: logging.NewComponentLogger(logger, "publisher")}
}

// Registry exposes the platform registry.
func (p *Publisher) Registry() *Registry {
	return p.registry
}

// Publish delivers one unit.
func (p *Publisher) Publish(ctx context.Context, unit *store.ScheduledUnit) (Receipt, error) {
	if unit == nil {
		return Receipt{}, services.Wrap(services.ErrPublishFailed, "publisher", "publish", "unit is nil", nil)
	}
	target, ok := p.registry.Get(unit.Platform)
	if !ok {
		return Receipt{}, services.WithHint(
			services.Wrap(services.ErrPublishFailed, "publisher", "publish",
				fmt.Sprintf("platform %q is not enabled", unit.Platform), nil),
			"enable the platform in [[platforms]] and requeue the unit",
		)
	}
	post, err := buildPost(unit)
	if err != nil {
		return Receipt{}, err
	}
	post.IdempotencyKey = IdempotencyKey(unit)

	result, err := target.CreatePost(ctx, post)
	if err != nil {
		return Receipt{}, services.Wrap(services.ErrPublishFailed, "publisher", "create post",
			fmt.Sprintf("%s rejected unit %d", unit.Platform, unit.ID), err)
	}
	if strings.TrimSpace(result.ExternalID) == "" {
		return Receipt{}, services.Wrap(services.ErrPublishFailed, "publisher", "create post",
			fmt.Sprintf("%s returned no post id", unit.Platform), nil)
	}
	logging.WithContext(ctx, p.logger).Info("unit published",
		logging.String(logging.FieldEventType, "unit_published"),
		logging.Int64(logging.FieldUnitID, unit.ID),
		logging.String(logging.FieldPlatform, unit.Platform),
		logging.String("external_id", result.ExternalID),
	)
	return Receipt{ExternalID: result.ExternalID, URL: result.URL}, nil
}

// IdempotencyKey derives the delivery key for a unit from its item's content
// hash, platform and unit id. Redelivering the same unit reuses the key; a
// requeued unit gets a new one.
func IdempotencyKey(unit *store.ScheduledUnit) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", unit.Metadata.ContentHash, normalize(unit.Platform), unit.ID)))
	return hex.EncodeToString(sum[:16])
}

func buildPost(unit *store.ScheduledUnit) (platform.Post, error) {
	meta := unit.Metadata
	if meta.TextOnly {
		if strings.TrimSpace(meta.Text) == "" {
			return platform.Post{}, services.Wrap(services.ErrPublishFailed, "publisher", "build post", "text-only unit has no text", nil)
		}
		return platform.Post{Text: meta.Text, Tags: meta.Tags, Format: meta.Format}, nil
	}
	videoURL := unit.PayloadURL
	if videoURL == "" {
		videoURL = meta.VideoURL
	}
	if videoURL == "" {
		return platform.Post{}, services.Wrap(services.ErrPublishFailed, "publisher", "build post", "video unit has no payload url", nil)
	}
	return platform.Post{
		Title:           meta.Title,
		Description:     meta.Description,
		Tags:            meta.Tags,
		VideoURL:        videoURL,
		ThumbnailURL:    meta.ThumbnailURL,
		DurationSeconds: meta.PlatformDurationSeconds,
		Aspect:          meta.Aspect,
		Format:          meta.Format,
	}, nil
}
