// Package notification implements the Notification Dispatcher (C11):
// audience resolution, Korean-locale template rendering, per-token push
// delivery with retry classification, and delivery idempotency.
package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Push platforms a token can belong to.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// PushToken is a registered device token for a user.
type PushToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	Platform  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Job is a queued notification, enqueued inside the originating request's
// transaction and drained by the dispatcher worker after commit.
type Job struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	TemplateID    string
	Params        map[string]string
	CorrelationID string
	Attempts      int
	CreatedAt     time.Time
}

// Template renders a Korean-locale notification body from params. Templates
// are keyed by TemplateID; unknown keys in the format string are left as
// literal "{key}" placeholders rather than erroring, since a missing param
// should degrade the copy, not the delivery.
type Template struct {
	ID    string
	Title string
	Body  string
}

// templates is the fixed set of notification copy this system sends.
// Korean locale per spec.
var templates = map[string]Template{
	"reservation_confirmed": {
		ID:    "reservation_confirmed",
		Title: "예약이 확정되었습니다",
		Body:  "{shopName}에서 {datetime} 예약이 확정되었습니다.",
	},
	"reservation_reminder": {
		ID:    "reservation_reminder",
		Title: "예약 알림",
		Body:  "{shopName} 예약이 {datetime}에 있습니다.",
	},
	"payment_confirmed": {
		ID:    "payment_confirmed",
		Title: "결제가 완료되었습니다",
		Body:  "{amount}원 결제가 완료되었습니다.",
	},
	"payment_refunded": {
		ID:    "payment_refunded",
		Title: "환불이 완료되었습니다",
		Body:  "{amount}원 환불이 완료되었습니다.",
	},
	"points_expiring": {
		ID:    "points_expiring",
		Title: "포인트 소멸 예정",
		Body:  "{points}P가 {date}에 소멸됩니다.",
	},
	"referral_credit": {
		ID:    "referral_credit",
		Title: "추천 포인트 적립",
		Body:  "{name} 님 덕분에 +{points} point",
	},
}

// Render looks up templateID and substitutes params into its body.
func Render(templateID string, params map[string]string) (title, body string, err error) {
	tpl, ok := templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", templateID)
	}
	return tpl.Title, substitute(tpl.Body, params), nil
}

func substitute(s string, params map[string]string) string {
	for k, v := range params {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
