package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

// HousekeepingService periodically removes expired tokens and abandoned
// authenticator states.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	StateTTL time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval defaults to one hour and a non-positive state TTL to
// DefaultStateTTL.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, stateTTL time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	if stateTTL <= 0 {
		stateTTL = DefaultStateTTL
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		StateTTL: stateTTL,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs cleanup now and then on every tick until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one pass. Each step is independent; a failure in one
// does not stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now().UTC()
	s.Logger.Debug("starting housekeeping cleanup")

	tokens, err := s.Store.Tokens().DeleteExpiredTokens(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired tokens", "error", err)
	}

	states, err := s.Store.States().DeleteStatesBefore(ctx, now.Add(-s.StateTTL))
	if err != nil {
		s.Logger.Error("failed to delete stale authenticator states", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"expired_tokens", tokens,
		"stale_states", states,
	)
}
