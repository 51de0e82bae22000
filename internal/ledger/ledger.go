// Package ledger maintains the append-only, hash-chained, signed audit
// event chains. One chain exists per project, plus one org-level chain for
// events not scoped to a project. Appends are serialized per chain by an
// atomic append-iff-tail-matches contract on the repository; losers of the
// tail race retry against the new tail, so no chain ever forks.
package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/obs"
)

// maxAppendRetries bounds how often an append re-reads the tail after
// losing the CAS race before giving up.
const maxAppendRetries = 8

// Draft is the caller-supplied portion of an audit event. The ledger
// assigns ID, timestamp, hashes, and signature.
type Draft struct {
	OrgID         uuid.UUID
	ProjectID     *uuid.UUID // nil appends to the org-level chain
	Category      domain.EventCategory
	Actor         string
	ResourceType  domain.ResourceType
	ResourceID    string
	Action        string
	Outcome       domain.Outcome
	Before        []byte
	After         []byte
	ChangedFields []string
	Reason        string
}

// purgeRecord is the After payload of a retention purge event. It anchors
// chain verification across the purged window.
type purgeRecord struct {
	FirstHash string    `json:"first_hash"`
	LastHash  string    `json:"last_hash"`
	Purged    int       `json:"purged"`
	Cutoff    time.Time `json:"cutoff"`
}

// VerifyResult reports the outcome of a chain walk. When the chain is
// broken, BrokenAt is the zero-based index of the first bad link.
type VerifyResult struct {
	Valid    bool
	BrokenAt int
	Checked  int
}

// EventPublisher delivers appended events to the live audit feeds.
// Publishing is best-effort and never affects chain durability.
type EventPublisher interface {
	PublishAuditEvent(ctx context.Context, e *domain.AuditEvent) error
}

// Ledger appends to and verifies audit chains.
type Ledger struct {
	events domain.AuditEventRepository
	keys   *Keyring
	pub    EventPublisher
}

// New creates a Ledger over the given repository and keyring.
func New(events domain.AuditEventRepository, keys *Keyring) *Ledger {
	return &Ledger{events: events, keys: keys}
}

// WithPublisher attaches a live-feed publisher and returns the ledger.
func (l *Ledger) WithPublisher(pub EventPublisher) *Ledger {
	l.pub = pub
	return l
}

// Append creates one immutable chain entry for a state-changing operation.
// It is called by the entity store immediately after a successful mutation;
// upstream collaborators never write audit events directly.
func (l *Ledger) Append(ctx context.Context, d Draft) (*domain.AuditEvent, error) {
	if d.OrgID == uuid.Nil {
		return nil, fmt.Errorf("ledger.Append: organization ID is required")
	}
	if d.Actor == "" {
		d.Actor = domain.ActorSystem
	}

	signer, err := l.keys.signerFor(d.OrgID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Append: %w", err)
	}

	// Postgres timestamp columns hold microseconds; anything finer would be
	// lost on the round trip and break signature verification.
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := &domain.AuditEvent{
		ID:            ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		OrgID:         d.OrgID,
		ProjectID:     d.ProjectID,
		Category:      d.Category,
		Actor:         d.Actor,
		ResourceType:  d.ResourceType,
		ResourceID:    d.ResourceID,
		Action:        d.Action,
		Outcome:       d.Outcome,
		Before:        d.Before,
		After:         d.After,
		ChangedFields: d.ChangedFields,
		Reason:        d.Reason,
		Timestamp:     now,
	}
	e.ContentHash = e.ComputeContentHash()

	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		tail, tailErr := l.events.TailHash(ctx, d.OrgID, d.ProjectID)
		if tailErr != nil {
			return nil, fmt.Errorf("ledger.Append: tail: %w", tailErr)
		}

		e.PrevHash = tail
		e.Signature = ed25519.Sign(signer, e.SigningPayload())

		appendErr := l.events.Append(ctx, e, tail)
		if appendErr == nil {
			obs.AuditAppends.WithLabelValues(string(e.Outcome)).Inc()
			if l.pub != nil {
				if pubErr := l.pub.PublishAuditEvent(ctx, e); pubErr != nil {
					log.Warn().Err(pubErr).Str("event_id", e.ID).Msg("audit live-feed publish failed")
				}
			}
			return e, nil
		}
		if !errors.Is(appendErr, domain.ErrConflict) {
			obs.AuditAppends.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("ledger.Append: %w", appendErr)
		}

		// Lost the tail race to a concurrent append; re-read and retry.
		obs.AuditTailRetries.Inc()
	}

	obs.AuditAppends.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("ledger.Append: gave up after %d tail conflicts: %w", maxAppendRetries, domain.ErrConflict)
}

// VerifyChain walks chain entries [from, to] recomputing content hashes,
// checking prev-hash linkage, and verifying every signature. It reports the
// first broken link and never repairs anything. to < 0 means chain end.
func (l *Ledger) VerifyChain(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, from, to int) (VerifyResult, error) {
	entries, err := l.events.ListChain(ctx, orgID, projectID, from, to)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("ledger.VerifyChain: %w", err)
	}

	pub, err := l.keys.PublicKey(orgID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("ledger.VerifyChain: %w", err)
	}

	broken := func(i int) VerifyResult {
		obs.ChainVerifications.WithLabelValues("broken").Inc()
		log.Warn().
			Str("org_id", orgID.String()).
			Int("index", from+i).
			Msg("audit chain verification failed")
		return VerifyResult{Valid: false, BrokenAt: from + i, Checked: i + 1}
	}

	prev := ""
	for i, e := range entries {
		if e.ComputeContentHash() != e.ContentHash {
			return broken(i), nil
		}

		switch {
		case i > 0:
			if e.PrevHash != prev {
				return broken(i), nil
			}
		case from == 0:
			// The oldest entry must anchor at genesis, or at a retention
			// purge checkpoint covering the removed window.
			if e.PrevHash != domain.GenesisHash && !l.purgeCovers(entries, e.PrevHash) {
				return broken(i), nil
			}
		}

		if !ed25519.Verify(pub, e.SigningPayload(), e.Signature) {
			return broken(i), nil
		}
		prev = e.ContentHash
	}

	obs.ChainVerifications.WithLabelValues("valid").Inc()
	return VerifyResult{Valid: true, BrokenAt: -1, Checked: len(entries)}, nil
}

// purgeCovers reports whether a retention event in the chain checkpoints
// the given dangling prev hash, i.e. the hash was the tail of a window the
// purge removed.
func (l *Ledger) purgeCovers(entries []*domain.AuditEvent, prevHash string) bool {
	for _, e := range entries {
		if e.Category != domain.CategoryRetention {
			continue
		}
		var rec purgeRecord
		if err := json.Unmarshal(e.After, &rec); err != nil {
			continue
		}
		if rec.LastHash == prevHash {
			return true
		}
	}
	return false
}

// PurgeExpired removes chain entries older than the retention period and
// appends a signed retention event referencing the purged range by hash.
// This is the only sanctioned removal path. Returns nil when nothing was
// old enough to purge.
//
// The checkpoint is appended BEFORE anything is removed: entries older than
// the cutoff are immutable, so the window bounds cannot shift, and a crash
// between the append and the delete leaves a fully intact chain with a
// redundant checkpoint. The reverse order could lose the purged window's
// hashes with no way to anchor verification across it.
func (l *Ledger) PurgeExpired(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, retention time.Duration, actor string) (*domain.AuditEvent, error) {
	cutoff := time.Now().UTC().Add(-retention)

	firstHash, lastHash, pending, err := l.events.WindowBefore(ctx, orgID, projectID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("ledger.PurgeExpired: %w", err)
	}
	if pending == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(purgeRecord{
		FirstHash: firstHash,
		LastHash:  lastHash,
		Purged:    pending,
		Cutoff:    cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger.PurgeExpired: marshal: %w", err)
	}

	resourceID := orgID.String()
	if projectID != nil {
		resourceID = projectID.String()
	}

	event, err := l.Append(ctx, Draft{
		OrgID:        orgID,
		ProjectID:    projectID,
		Category:     domain.CategoryRetention,
		Actor:        actor,
		ResourceType: domain.ResourceOrganization,
		ResourceID:   resourceID,
		Action:       "retention_purge",
		Outcome:      domain.OutcomeSuccess,
		After:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("ledger.PurgeExpired: record purge: %w", err)
	}

	purged, err := l.events.DeleteBefore(ctx, orgID, projectID, cutoff)
	if err != nil {
		// The chain is still intact; the next purge run retries the removal
		// under a fresh checkpoint.
		return nil, fmt.Errorf("ledger.PurgeExpired: remove purged window: %w", err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Int("purged", purged).
		Time("cutoff", cutoff).
		Msg("audit retention purge completed")

	return event, nil
}
