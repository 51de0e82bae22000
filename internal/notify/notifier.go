// Package notify dispatches operator alerts for compliance-critical
// conditions, primarily a broken audit chain. Alerts are best effort: the
// condition that triggered them is already persisted and halting, so a
// failed delivery degrades to structured logging, never to silence.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sender posts an alert message to a destination channel.
type Sender interface {
	Send(ctx context.Context, channel, message string) error
}

// Notifier routes operator alerts to a configured channel. A nil sender
// logs only.
type Notifier struct {
	sender  Sender
	channel string
}

// New creates a Notifier. Pass a nil sender to run log-only.
func New(sender Sender, channel string) *Notifier {
	return &Notifier{sender: sender, channel: channel}
}

// Alert delivers one operator alert.
func (n *Notifier) Alert(ctx context.Context, message string) {
	if n.sender == nil || n.channel == "" {
		log.Warn().Str("alert", message).Msg("operator alert (no sender configured)")
		return
	}
	if err := n.sender.Send(ctx, n.channel, message); err != nil {
		log.Error().Err(err).Str("alert", message).Msg("operator alert delivery failed")
	}
}

// AlertChainBroken reports an audit chain that failed verification. Score
// recomputation for the project stays halted until an operator
// acknowledges.
func (n *Notifier) AlertChainBroken(ctx context.Context, orgID, projectID uuid.UUID, brokenAt int) {
	n.Alert(ctx, fmt.Sprintf(
		":rotating_light: audit chain broken for project %s (org %s) at entry %d; score recomputation halted until acknowledged",
		projectID, orgID, brokenAt))
}
