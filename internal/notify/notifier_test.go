package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeSender struct {
	channel string
	message string
	err     error
}

func (s *fakeSender) Send(_ context.Context, channel, message string) error {
	s.channel = channel
	s.message = message
	return s.err
}

func TestAlertRoutesToChannel(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	n := New(sender, "#compliance-ops")

	n.Alert(context.Background(), "something happened")
	assert.Equal(t, "#compliance-ops", sender.channel)
	assert.Equal(t, "something happened", sender.message)
}

func TestAlertChainBrokenMessage(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	n := New(sender, "#compliance-ops")

	orgID := uuid.New()
	projectID := uuid.New()
	n.AlertChainBroken(context.Background(), orgID, projectID, 7)

	assert.Contains(t, sender.message, projectID.String())
	assert.Contains(t, sender.message, orgID.String())
	assert.Contains(t, sender.message, "at entry 7")
	assert.Contains(t, sender.message, "halted")
}

func TestAlertWithoutSenderLogsOnly(t *testing.T) {
	t.Parallel()

	// Must not panic without a sender or channel.
	New(nil, "").Alert(context.Background(), "log only")
	New(nil, "#ops").Alert(context.Background(), "log only")
}

func TestAlertDeliveryFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: errors.New("slack down")}
	New(sender, "#ops").Alert(context.Background(), "still logged")
	assert.Equal(t, "still logged", sender.message)
}
