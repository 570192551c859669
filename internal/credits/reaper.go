package credits

import (
	"context"
	"time"
)

// Start runs the loop that expires abandoned pending purchases.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.reapLoop(ctx)
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) reapLoop(ctx context.Context) {
	defer s.wg.Done()
	interval := s.cfg.ReapInterval()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reap(ctx)
		}
	}
}

func (s *Service) reap(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.PendingPurchaseTTL())
	n, err := s.store.ExpirePendingPurchases(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to expire pending purchases", "error", err)
		return 0
	}
	if n > 0 {
		s.metrics.AddPurchasesExpired(n)
		s.logger.Info("expired pending purchases", "count", n, "cutoff", cutoff)
	}
	return n
}
