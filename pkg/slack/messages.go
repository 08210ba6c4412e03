package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

// SeverityEmoji returns the emoji prefix for a given severity level.
func SeverityEmoji(severity string) string {
	switch severity {
	case "critical":
		return "🔴"
	case "major":
		return "🟠"
	case "warning":
		return "🟡"
	case "info":
		return "🔵"
	default:
		return "⚪"
	}
}

// SecurityEventBlocks builds Slack Block Kit blocks for a security-event
// ops alert (cross-shop access attempts, rate-limit violations, failed
// logins).
func SecurityEventBlocks(evt SecurityEventInfo) []goslack.Block {
	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType,
			fmt.Sprintf("%s %s", SeverityEmoji(evt.Severity), evt.Kind), true, false),
	)

	var fields []*goslack.TextBlockObject
	if evt.ShopID != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Shop:* %s", evt.ShopID), false, false))
	}
	if evt.PrincipalID != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Principal:* %s", evt.PrincipalID), false, false))
	}
	if evt.Path != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Path:* %s", evt.Path), false, false))
	}
	if evt.IPAddress != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*IP:* %s", evt.IPAddress), false, false))
	}

	blocks := []goslack.Block{header}
	if len(fields) > 0 {
		blocks = append(blocks, goslack.NewSectionBlock(nil, fields, nil))
	}
	if evt.Detail != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncate(evt.Detail, 500), false, false),
			nil, nil,
		))
	}
	return blocks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
