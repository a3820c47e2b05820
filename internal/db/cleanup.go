package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
)

type CleanupService struct {
	sessions       *SessionRepository
	passwordResets *PasswordResetRepository
	interval       time.Duration
}

func NewCleanupService(sessions *SessionRepository, passwordResets *PasswordResetRepository, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupService{
		sessions:       sessions,
		passwordResets: passwordResets,
		interval:       interval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	sessionsDeleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		slog.Error("error deleting expired sessions", "component", "cleanup", "error", err)
	} else if sessionsDeleted > 0 {
		slog.Info("deleted expired sessions", "component", "cleanup", "count", sessionsDeleted)
	}

	resetsDeleted, err := s.passwordResets.DeleteExpired(ctx)
	if err != nil {
		slog.Error("error deleting expired password resets", "component", "cleanup", "error", err)
	} else if resetsDeleted > 0 {
		slog.Info("deleted expired password resets", "component", "cleanup", "count", resetsDeleted)
	}
}
