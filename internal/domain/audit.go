package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenesisHash is the prev_hash of the first entry in every audit chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ActorSystem is the actor recorded for operations not attributable to a user.
const ActorSystem = "system"

// EventCategory groups audit events for reporting.
type EventCategory string

const (
	CategoryDataChange EventCategory = "data_change"
	CategoryAccess     EventCategory = "access"
	CategoryRetention  EventCategory = "retention"
	CategorySystem     EventCategory = "system"
)

// Outcome records whether the audited operation succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// AuditEvent is one immutable entry in a tenant's tamper-evident audit
// chain. Entries are hash-linked per project (or per organization for
// org-scoped events) and signed with a tenant-scoped key. They are never
// updated or deleted outside the retention purge, which itself appends a
// signed event. Events outlive the entities they describe.
type AuditEvent struct {
	ID            string // ULID, lexicographically ordered by creation time
	OrgID         uuid.UUID
	ProjectID     *uuid.UUID // nil for org-level events
	Category      EventCategory
	Actor         string // user ID or ActorSystem
	ResourceType  ResourceType
	ResourceID    string
	Action        string
	Outcome       Outcome
	Before        []byte // JSON snapshot prior to the change, nil on create
	After         []byte // JSON snapshot after the change, nil on delete
	ChangedFields []string
	Reason        string // operator-supplied, e.g. for stage regressions
	Timestamp     time.Time
	ContentHash   string // hex SHA-256 over the entry content
	PrevHash      string // content hash of the previous entry in the chain
	Signature     []byte // ed25519 over content hash, prev hash, timestamp
}

// ComputeContentHash returns the hex SHA-256 over the entry's content
// fields. Fields are length-delimited so the encoding is unambiguous and
// the hash is reproducible during chain verification.
func (e *AuditEvent) ComputeContentHash() string {
	h := sha256.New()
	writeField := func(b []byte) {
		h.Write([]byte(strconv.Itoa(len(b))))
		h.Write([]byte{':'})
		h.Write(b)
	}
	writeField([]byte(e.Category))
	writeField([]byte(e.Actor))
	writeField([]byte(e.ResourceType))
	writeField([]byte(e.ResourceID))
	writeField([]byte(e.Action))
	writeField([]byte(e.Outcome))
	writeField(e.Before)
	writeField(e.After)
	writeField([]byte(strings.Join(e.ChangedFields, ",")))
	writeField([]byte(e.Reason))
	return hex.EncodeToString(h.Sum(nil))
}

// SigningPayload is the byte sequence covered by the entry signature.
func (e *AuditEvent) SigningPayload() []byte {
	payload := make([]byte, 0, len(e.ContentHash)+len(e.PrevHash)+len(time.RFC3339Nano))
	payload = append(payload, e.ContentHash...)
	payload = append(payload, e.PrevHash...)
	payload = append(payload, e.Timestamp.UTC().Format(time.RFC3339Nano)...)
	return payload
}

// AuditEventRepository persists the append-only chains. Implementations
// must support atomic "append iff prev_hash matches the current tail".
type AuditEventRepository interface {
	// Append persists e iff the chain tail's content hash still equals
	// expectedPrevHash; otherwise it fails with ErrConflict and the caller
	// must re-read the tail and retry. This is the only write path.
	Append(ctx context.Context, e *AuditEvent, expectedPrevHash string) error
	// TailHash returns the content hash of the newest entry in the chain,
	// or GenesisHash when the chain is empty.
	TailHash(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID) (string, error)
	// ListChain returns chain entries in append order, oldest first.
	// from/to are zero-based indexes; to < 0 means the end of the chain.
	ListChain(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, from, to int) ([]*AuditEvent, error)
	ListByProject(ctx context.Context, orgID, projectID uuid.UUID, limit, offset int) ([]*AuditEvent, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*AuditEvent, error)
	// WindowBefore reports the content hashes bounding the chain entries
	// older than cutoff, without removing anything. Entries older than the
	// cutoff are immutable, so the window is stable across calls.
	WindowBefore(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, cutoff time.Time) (firstHash, lastHash string, count int, err error)
	// DeleteBefore removes chain entries older than cutoff. Reserved for
	// the retention purge, which appends its checkpoint first; no other
	// caller may remove entries.
	DeleteBefore(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, cutoff time.Time) (purged int, err error)
}
