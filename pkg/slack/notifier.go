// Package slack posts security-event ops alerts to a Slack channel. It is
// the admin-facing notification channel for C12 SecurityEvents (cross-shop
// access attempts, rate-limit violations, failed logins) — not
// a customer-facing notification path, which is pkg/notification.
package slack

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Notifier sends messages to a Slack channel.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a Slack Notifier. If botToken is empty, the notifier
// will be a noop (logging only).
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// IsEnabled returns true if the notifier has a valid Slack client.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// PostSecurityEvent sends a security-event notification to the configured
// channel. Returns the channel ID and message timestamp for threading.
func (n *Notifier) PostSecurityEvent(ctx context.Context, evt SecurityEventInfo) (channelID, ts string, err error) {
	if !n.IsEnabled() {
		n.logger.Debug("slack notifier disabled, skipping security event post",
			"event_id", evt.EventID,
			"kind", evt.Kind,
		)
		return "", "", nil
	}

	blocks := SecurityEventBlocks(evt)
	opts := []goslack.MsgOption{
		goslack.MsgOptionBlocks(blocks...),
		goslack.MsgOptionText(fmt.Sprintf("%s %s", SeverityEmoji(evt.Severity), evt.Kind), false),
	}

	channelID, ts, err = n.client.PostMessageContext(ctx, n.channel, opts...)
	if err != nil {
		return "", "", fmt.Errorf("posting security event to slack: %w", err)
	}

	n.logger.Info("posted security event to slack",
		"event_id", evt.EventID,
		"channel", channelID,
		"ts", ts,
	)
	return channelID, ts, nil
}

// PostThreadReply posts a follow-up note in a security event's thread (e.g.
// once an admin resolves or an auto-remediation kicks in).
func (n *Notifier) PostThreadReply(ctx context.Context, channelID, threadTS, text string) error {
	if !n.IsEnabled() {
		return nil
	}

	opts := []goslack.MsgOption{
		goslack.MsgOptionText(text, false),
		goslack.MsgOptionTS(threadTS),
	}

	_, _, err := n.client.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return fmt.Errorf("posting thread reply to slack: %w", err)
	}
	return nil
}
