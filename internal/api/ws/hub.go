// Package ws streams per-project live feeds over WebSocket: entity
// mutations, appended audit events, and fresh compliance score snapshots.
// Feeds are fan-out only; clients never write upstream.
package ws

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/veritrail/veritrail/internal/server/middleware"
	redisstore "github.com/veritrail/veritrail/internal/store/redis"
)

// Hub serves WebSocket subscriptions backed by Redis pub/sub. Channels are
// keyed by the subscriber's own organization, so a foreign project ID only
// ever yields a silent feed.
type Hub struct {
	pubsub *redisstore.PubSub
}

// NewHub creates a Hub over the given pub/sub transport.
func NewHub(pubsub *redisstore.PubSub) *Hub {
	return &Hub{pubsub: pubsub}
}

// ServeMutations streams a project's entity mutation events.
func (h *Hub) ServeMutations(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, redisstore.ProjectChannel)
}

// ServeAudit streams a project's audit trail as events are appended.
func (h *Hub) ServeAudit(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, redisstore.AuditChannel)
}

// ServeScore streams compliance score snapshots as they are recomputed.
func (h *Hub) ServeScore(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, redisstore.ScoreChannel)
}

// stream upgrades the connection and forwards the named channel until the
// client goes away or the subscription closes.
func (h *Hub) stream(w http.ResponseWriter, r *http.Request, channel func(orgID, projectID uuid.UUID) string) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant", http.StatusForbidden)
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		http.Error(w, "invalid project id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	messages, cleanup, err := h.pubsub.Subscribe(ctx, channel(p.OrgID, projectID))
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
