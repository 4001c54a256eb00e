package scheduler

import (
	"context"
	"log"
	"time"

	"ShareGate/config"
	"ShareGate/internal/service"
)

// StartPruneLoop runs Prune on the configured interval until the context
// is cancelled.
func StartPruneLoop(ctx context.Context, cfg *config.Config, lifecycle *service.Lifecycle) {
	if !cfg.PruneEnabled || cfg.PruneInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err := lifecycle.Prune(cfg.PruneRevokedDays)
				if err != nil {
					log.Printf("prune failed: %v", err)
					continue
				}
				if result.Expired > 0 || result.Revoked > 0 {
					log.Printf("pruned %d expired and %d revoked share links", result.Expired, result.Revoked)
				}
			}
		}
	}()
}
