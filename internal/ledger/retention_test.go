package ledger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/store/memory"
)

func TestRetentionSweepPurgesAllChains(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	keys, err := NewKeyring(bytes.Repeat([]byte{0x99}, 32))
	require.NoError(t, err)
	l := New(mem.AuditEvents(), keys)
	ctx := context.Background()

	org, err := domain.NewOrganization("acme medical", "eu-west-1")
	require.NoError(t, err)
	require.NoError(t, mem.Organizations().Create(ctx, org))

	proj, err := domain.NewProject(org.ID, org.ID, "pump firmware", nil, domain.RiskClassII)
	require.NoError(t, err)
	require.NoError(t, mem.Projects().Create(ctx, proj))

	// Age out one event on the org chain and one on the project chain.
	_, err = l.Append(ctx, draft(org.ID, nil, "old"))
	require.NoError(t, err)
	_, err = l.Append(ctx, draft(org.ID, &proj.ID, "old"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	w := NewRetentionWorker(l, mem.Organizations(), mem.Projects(), 10*time.Millisecond, time.Hour)
	w.sweep(ctx)

	// Each chain now holds only its signed retention checkpoint, and both
	// still verify across the purged window.
	orgEntries, err := mem.AuditEvents().ListChain(ctx, org.ID, nil, 0, -1)
	require.NoError(t, err)
	require.Len(t, orgEntries, 1)
	assert.Equal(t, domain.CategoryRetention, orgEntries[0].Category)

	projEntries, err := mem.AuditEvents().ListChain(ctx, org.ID, &proj.ID, 0, -1)
	require.NoError(t, err)
	require.Len(t, projEntries, 1)
	assert.Equal(t, domain.CategoryRetention, projEntries[0].Category)

	res, err := l.VerifyChain(ctx, org.ID, &proj.ID, 0, -1)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestRetentionSweepNoOpOnFreshChains(t *testing.T) {
	t.Parallel()
	mem := memory.New()
	keys, err := NewKeyring(bytes.Repeat([]byte{0x99}, 32))
	require.NoError(t, err)
	l := New(mem.AuditEvents(), keys)
	ctx := context.Background()

	org, err := domain.NewOrganization("acme medical", "eu-west-1")
	require.NoError(t, err)
	require.NoError(t, mem.Organizations().Create(ctx, org))

	_, err = l.Append(ctx, draft(org.ID, nil, "fresh"))
	require.NoError(t, err)

	w := NewRetentionWorker(l, mem.Organizations(), mem.Projects(), time.Hour, time.Hour)
	w.sweep(ctx)

	entries, err := mem.AuditEvents().ListChain(ctx, org.ID, nil, 0, -1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].Action)
}
