package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/obs"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
)

// DefaultSessionRetention is how long ended sessions are kept after their
// last use. Reuse detection needs rotated sessions to outlive the refresh
// token that pointed at them.
const DefaultSessionRetention = 30 * 24 * time.Hour

// HousekeepingService periodically removes expired authorization codes and
// stale sessions, and expires seats whose paid period has ended.
type HousekeepingService struct {
	Store        store.Store
	Entitlements *EntitlementService
	Logger       *slog.Logger
	Interval     time.Duration
	Retention    time.Duration
	Now          func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. A non-positive
// interval defaults to 10 minutes.
func NewHousekeepingService(st store.Store, entitlements *EntitlementService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	return &HousekeepingService{
		Store:        st,
		Entitlements: entitlements,
		Logger:       logger,
		Interval:     interval,
		Retention:    DefaultSessionRetention,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", slog.Duration("interval", s.Interval))
}

// Stop ends the worker and waits for an in-progress pass to finish.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunOnce(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RunOnce performs one cleanup pass. Each step is independent; a failure
// in one does not stop the others.
func (s *HousekeepingService) RunOnce(ctx context.Context) {
	ctx = slogx.WithContext(ctx, s.Logger)
	now := s.now()

	if n, err := s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired authorization codes", slog.Any("err", err))
	} else {
		obs.Housekeeping("authorization_codes", n)
		s.Logger.Debug("deleted expired authorization codes", slog.Int64("rows", n))
	}

	retention := s.Retention
	if retention <= 0 {
		retention = DefaultSessionRetention
	}
	if n, err := s.Store.Sessions().DeleteStaleSessions(ctx, now.Add(-retention)); err != nil {
		s.Logger.Error("failed to delete stale sessions", slog.Any("err", err))
	} else {
		obs.Housekeeping("sessions", n)
		s.Logger.Debug("deleted stale sessions", slog.Int64("rows", n))
	}

	if s.Entitlements != nil {
		if n, err := s.Entitlements.ExpireSeats(ctx); err != nil {
			s.Logger.Error("failed to expire seats", slog.Any("err", err))
		} else {
			obs.Housekeeping("seats", int64(n))
			if n > 0 {
				s.Logger.Info("expired seats", slog.Int("seats", n))
			}
		}
	}
}
