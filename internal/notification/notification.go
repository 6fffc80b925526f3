// Package notification delivers out-of-band messages such as import
// summaries and care-due reminders through shoutrrr service URLs.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/errors"
	"github.com/fancyplanties/fancy-planties/internal/logging"
)

// defaultTimeout bounds a single dispatch across all configured services.
const defaultTimeout = 10 * time.Second

// Service sends notifications through a shoutrrr router. A disabled or
// unconfigured service accepts sends and drops them silently.
type Service struct {
	enabled bool
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
	logger  *slog.Logger
}

// New builds the notification service from settings. URL validation happens
// here so a bad service URL fails at startup, not on first send.
func New(settings *conf.Settings) (*Service, error) {
	s := &Service{
		enabled: settings.Notification.Enabled,
		urls:    slices.Clone(settings.Notification.URLs),
		timeout: defaultTimeout,
		logger:  logging.ForService("notification"),
	}

	if !s.enabled || len(s.urls) == 0 {
		s.enabled = false
		return s, nil
	}

	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryNotification).
			Component("notification").
			Build()
	}
	sender.Timeout = s.timeout
	sender.SetLogger(log.New(io.Discard, "", 0))
	s.sender = sender
	return s, nil
}

// Enabled reports whether dispatch is active.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Send dispatches one message to every configured service. Errors are
// returned for logging but callers treat delivery as best-effort.
func (s *Service) Send(ctx context.Context, title, message string) error {
	if !s.enabled || s.sender == nil {
		return nil
	}
	_ = ctx // the router enforces its own timeout

	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	for _, err := range s.sender.Send(message, &params) {
		if err != nil {
			return errors.New(err).
				Category(errors.CategoryNotification).
				Component("notification").
				Build()
		}
	}
	return nil
}

// SendAsync dispatches without blocking the caller. Failures are logged.
func (s *Service) SendAsync(title, message string) {
	if !s.enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.Send(ctx, title, message); err != nil && s.logger != nil {
			s.logger.Warn("Notification dispatch failed", "title", title, "error", err)
		}
	}()
}

// CareReminder formats and sends a care-due reminder for a set of plants.
func (s *Service) CareReminder(ctx context.Context, nicknames []string) error {
	if len(nicknames) == 0 {
		return nil
	}
	message := fmt.Sprintf("%d plant(s) need fertilizing: %s",
		len(nicknames), joinMax(nicknames, 10))
	return s.Send(ctx, "Care reminder", message)
}

// joinMax joins up to n items, appending a count of the remainder.
func joinMax(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:n], ", "), len(items)-n)
}
