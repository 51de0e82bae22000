// Package redis wraps the Redis pub/sub transport for mutation events and
// the per-project live audit and score feeds.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/domain"
	"github.com/veritrail/veritrail/internal/entitystore"
)

// mutationsChannel carries every entity mutation; the score recompute
// scheduler consumes it.
const mutationsChannel = "mutations"

type PubSub struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// PublishMutation fans a mutation event out to the global mutations channel
// and the owning project's channel.
func (ps *PubSub) PublishMutation(ctx context.Context, m entitystore.Mutation) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis.PubSub.PublishMutation: marshal: %w", err)
	}
	if err := ps.Publish(ctx, mutationsChannel, payload); err != nil {
		return err
	}
	return ps.Publish(ctx, ProjectChannel(m.OrgID, m.ProjectID), payload)
}

// Mutations subscribes to the global mutation stream, decoding events until
// the context is cancelled.
func (ps *PubSub) Mutations(ctx context.Context) (<-chan entitystore.Mutation, error) {
	raw, cleanup, err := ps.Subscribe(ctx, mutationsChannel)
	if err != nil {
		return nil, err
	}

	out := make(chan entitystore.Mutation, 64)
	go func() {
		defer close(out)
		defer cleanup()
		for payload := range raw {
			var m entitystore.Mutation
			if err := json.Unmarshal(payload, &m); err != nil {
				log.Warn().Err(err).Msg("dropping malformed mutation event")
				continue
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// PublishAuditEvent delivers an appended audit event to its project's live
// audit feed. Org-level events have no feed channel and are skipped.
func (ps *PubSub) PublishAuditEvent(ctx context.Context, e *domain.AuditEvent) error {
	if e.ProjectID == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis.PubSub.PublishAuditEvent: marshal: %w", err)
	}
	return ps.Publish(ctx, AuditChannel(e.OrgID, *e.ProjectID), payload)
}

// PublishScore delivers a fresh compliance score snapshot to the project's
// live score feed.
func (ps *PubSub) PublishScore(ctx context.Context, snap *domain.ComplianceScoreSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis.PubSub.PublishScore: marshal: %w", err)
	}
	return ps.Publish(ctx, ScoreChannel(snap.OrgID, snap.ProjectID), payload)
}

// ProjectChannel names the per-project mutation event channel.
func ProjectChannel(orgID, projectID uuid.UUID) string {
	return "project:" + orgID.String() + ":" + projectID.String()
}

// AuditChannel names the per-project live audit feed channel.
func AuditChannel(orgID, projectID uuid.UUID) string {
	return "audit:" + orgID.String() + ":" + projectID.String()
}

// ScoreChannel names the per-project score update feed channel.
func ScoreChannel(orgID, projectID uuid.UUID) string {
	return "score:" + orgID.String() + ":" + projectID.String()
}
