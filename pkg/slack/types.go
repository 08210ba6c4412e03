package slack

// SecurityEventInfo holds the data needed to build a Slack ops-alert
// notification for a C12 SecurityEvent.
type SecurityEventInfo struct {
	EventID     string
	Kind        string // e.g. "unauthorized_shop_access_attempt", "rate_limit_exceeded", "auth_failed"
	Severity    string // critical | major | warning | info
	ShopID      string
	PrincipalID string
	Detail      string
	Path        string
	IPAddress   string
}
