package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/domain"
)

// RetentionWorker periodically purges expired chain entries for every
// organization: the org-level chain plus each project chain. Each purge
// appends its own signed retention event, so verification stays possible
// across the removed window.
type RetentionWorker struct {
	ledger    *Ledger
	orgs      domain.OrganizationRepository
	projects  domain.ProjectRepository
	retention time.Duration
	interval  time.Duration
}

// NewRetentionWorker creates a worker. A non-positive interval defaults to
// 24h.
func NewRetentionWorker(l *Ledger, orgs domain.OrganizationRepository, projects domain.ProjectRepository, retention, interval time.Duration) *RetentionWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionWorker{
		ledger:    l,
		orgs:      orgs,
		projects:  projects,
		retention: retention,
		interval:  interval,
	}
}

// Run purges on the configured interval until the context is cancelled. The
// first sweep runs immediately.
func (w *RetentionWorker) Run(ctx context.Context) error {
	log.Info().
		Dur("retention", w.retention).
		Dur("interval", w.interval).
		Msg("audit retention worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sweep purges every chain once. Per-chain failures are logged and skipped;
// the next sweep retries.
func (w *RetentionWorker) sweep(ctx context.Context) {
	orgs, err := w.orgs.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("retention sweep: listing organizations failed")
		return
	}

	for _, org := range orgs {
		w.purge(ctx, org.ID, nil)

		projects, err := w.projects.List(ctx, org.ID)
		if err != nil {
			log.Warn().Err(err).
				Str("org_id", org.ID.String()).
				Msg("retention sweep: listing projects failed")
			continue
		}
		for _, p := range projects {
			projectID := p.ID
			w.purge(ctx, org.ID, &projectID)
		}
	}
}

func (w *RetentionWorker) purge(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID) {
	if _, err := w.ledger.PurgeExpired(ctx, orgID, projectID, w.retention, domain.ActorSystem); err != nil {
		log.Warn().Err(err).
			Str("org_id", orgID.String()).
			Msg("retention purge failed")
	}
}
