// Package imagestore issues presigned URLs for plant photo uploads and
// downloads. Objects live in S3 under per-user key prefixes; the service
// never proxies image bytes itself.
package imagestore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/logging"
)

// Entity types an image may be attached to.
const (
	EntityInstance    = "instance"
	EntityPropagation = "propagation"
)

// allowedContentTypes maps accepted upload content types to their key
// extension. Anything else is rejected before a URL is signed.
var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Provider signs object-storage URLs. The S3 implementation is the only
// production provider; tests substitute a fake.
type Provider interface {
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// UploadRequest asks for a presigned upload URL for a new image.
type UploadRequest struct {
	EntityType  string `json:"entityType"`
	EntityID    uint   `json:"entityId"`
	ContentType string `json:"contentType"`
}

// UploadGrant is a presigned upload URL plus the key the client must store.
type UploadGrant struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	MaxSize   int64     `json:"maxSize"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DownloadGrant is a presigned download URL for an existing image.
type DownloadGrant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service validates requests and delegates URL signing to the provider.
type Service struct {
	settings *conf.Settings
	provider Provider
	logger   *slog.Logger
}

// New creates an image store service backed by S3. Returns an error when
// image storage is enabled but misconfigured.
func New(ctx context.Context, settings *conf.Settings) (*Service, error) {
	if !settings.ImageStore.Enabled {
		return &Service{settings: settings, logger: logging.ForService("imagestore")}, nil
	}

	provider, err := newS3Provider(ctx, &settings.ImageStore)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryImageStore).
			Component("imagestore").
			Context("bucket", settings.ImageStore.Bucket).
			Build()
	}
	return NewWithProvider(settings, provider), nil
}

// NewWithProvider creates a service over an explicit provider.
func NewWithProvider(settings *conf.Settings, provider Provider) *Service {
	return &Service{
		settings: settings,
		provider: provider,
		logger:   logging.ForService("imagestore"),
	}
}

// Enabled reports whether image storage is configured and active.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// UploadURL validates the request and returns a presigned PUT grant. The
// object key embeds the owning user so downloads can be ownership-checked.
func (s *Service) UploadURL(ctx context.Context, userID uint, req *UploadRequest) (*UploadGrant, error) {
	if !s.Enabled() {
		return nil, errors.Newf("image storage is not enabled").
			Category(errors.CategoryImageStore).
			Component("imagestore").
			Build()
	}

	ext, ok := allowedContentTypes[strings.ToLower(req.ContentType)]
	if !ok {
		return nil, errors.Newf("unsupported content type %q", req.ContentType).
			Category(errors.CategoryValidation).
			Component("imagestore").
			Build()
	}
	if req.EntityType != EntityInstance && req.EntityType != EntityPropagation {
		return nil, errors.Newf("unsupported entity type %q", req.EntityType).
			Category(errors.CategoryValidation).
			Component("imagestore").
			Build()
	}
	if req.EntityID == 0 {
		return nil, errors.Newf("entity id is required").
			Category(errors.CategoryValidation).
			Component("imagestore").
			Build()
	}

	key := buildKey(userID, req.EntityType, req.EntityID, ext)
	expires := s.expiry()

	url, err := s.provider.PresignPut(ctx, key, req.ContentType, expires)
	if err != nil {
		return nil, fmt.Errorf("signing upload url: %w", err)
	}

	return &UploadGrant{
		Key:       key,
		URL:       url,
		Method:    "PUT",
		MaxSize:   s.maxSize(),
		ExpiresAt: time.Now().Add(expires),
	}, nil
}

// DownloadURL returns a presigned GET grant after checking that the key
// belongs to the requesting user.
func (s *Service) DownloadURL(ctx context.Context, userID uint, key string) (*DownloadGrant, error) {
	if !s.Enabled() {
		return nil, errors.Newf("image storage is not enabled").
			Category(errors.CategoryImageStore).
			Component("imagestore").
			Build()
	}

	if err := validateKeyOwnership(key, userID); err != nil {
		return nil, err
	}

	expires := s.expiry()
	url, err := s.provider.PresignGet(ctx, key, expires)
	if err != nil {
		return nil, fmt.Errorf("signing download url: %w", err)
	}

	return &DownloadGrant{
		URL:       url,
		ExpiresAt: time.Now().Add(expires),
	}, nil
}

func (s *Service) expiry() time.Duration {
	if s.settings.ImageStore.URLExpiration > 0 {
		return time.Duration(s.settings.ImageStore.URLExpiration) * time.Second
	}
	return 15 * time.Minute
}

func (s *Service) maxSize() int64 {
	if s.settings.ImageStore.MaxUploadSize > 0 {
		return s.settings.ImageStore.MaxUploadSize
	}
	return 10 << 20 // 10 MiB
}

// buildKey produces users/{userID}/{entityType}/{entityID}/{uuid}.{ext}.
func buildKey(userID uint, entityType string, entityID uint, ext string) string {
	return fmt.Sprintf("users/%d/%s/%d/%s.%s", userID, entityType, entityID, uuid.NewString(), ext)
}

// validateKeyOwnership rejects keys outside the user's prefix or containing
// path traversal.
func validateKeyOwnership(key string, userID uint) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return errors.Newf("invalid image key").
			Category(errors.CategoryValidation).
			Component("imagestore").
			Build()
	}
	prefix := fmt.Sprintf("users/%d/", userID)
	if !strings.HasPrefix(key, prefix) {
		return errors.Newf("image key does not belong to the requesting user").
			Category(errors.CategoryForbidden).
			Component("imagestore").
			Build()
	}
	return nil
}
