package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackSender delivers alerts to a Slack channel via the Web API.
type SlackSender struct {
	client *slack.Client
}

// NewSlackSender creates a SlackSender from a bot token.
func NewSlackSender(token string) *SlackSender {
	return &SlackSender{client: slack.New(token)}
}

func (s *SlackSender) Send(ctx context.Context, channel, message string) error {
	_, _, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("notify.SlackSender.Send: %w", err)
	}
	return nil
}
