// Package audit implements the Audit & Security Log (C12): two append-only
// streams — AuditEvent for privileged/admin actions, SecurityEvent for
// access denials and abuse signals — written asynchronously off an
// in-memory buffer so logging never adds latency to the request path.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/pkg/slack"
)

// AuditEvent records a privileged action taken against the system.
type AuditEvent struct {
	ID           uuid.UUID
	ActorID      pgtype.UUID
	ShopID       pgtype.UUID
	Action       string
	ResourceType string
	ResourceID   pgtype.UUID
	Before       json.RawMessage
	After        json.RawMessage
	IPAddress    *netip.Addr
	CreatedAt    time.Time
}

// SecurityEvent records an access denial or abuse signal. Kind is one of
// unauthorized_shop_access_attempt, rate_limit_exceeded, auth_failed.
type SecurityEvent struct {
	ID        uuid.UUID
	ActorID   pgtype.UUID
	ShopID    pgtype.UUID
	Kind      string
	Details   json.RawMessage
	IPAddress *netip.Addr
	CreatedAt time.Time
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer is an async, buffered writer for both event streams. Entries are
// enqueued on two channels and flushed by a single background goroutine,
// which inserts each batched event with its own statement on the pool; events
// are not grouped by shop_id and no RLS session variables are set.
type Writer struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	audit    chan AuditEvent
	security chan SecurityEvent
	wg       sync.WaitGroup
	slack    *slack.Notifier
}

// NewWriter creates a Writer. Call Start to begin the flush loop.
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{
		pool:     pool,
		logger:   logger,
		audit:    make(chan AuditEvent, bufferSize),
		security: make(chan SecurityEvent, bufferSize),
	}
}

// SetSlackNotifier wires an ops-alert channel: every SecurityEvent recorded
// afterward is also posted there, best-effort, alongside its DB write.
func (w *Writer) SetSlackNotifier(n *slack.Notifier) {
	w.slack = n
}

var securitySeverity = map[string]string{
	"unauthorized_shop_access_attempt": "major",
	"rate_limit_exceeded":              "warning",
	"auth_failed":                      "warning",
	"webhook_signature_invalid":        "critical",
	"gateway_outage":                   "critical",
}

func severityFor(kind string) string {
	if sev, ok := securitySeverity[kind]; ok {
		return sev
	}
	return "info"
}

// Start launches the background flush loop and returns immediately. The loop
// ends when ctx is cancelled, after flushing the entries it has already
// batched (entries still queued in the channels are not drained), or once
// Close has closed both channels.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close stops accepting entries and waits for the final flush.
func (w *Writer) Close() {
	close(w.audit)
	close(w.security)
	w.wg.Wait()
}

// LogAudit enqueues an audit event. Never blocks; drops and warns if full.
func (w *Writer) LogAudit(e AuditEvent) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	select {
	case w.audit <- e:
	default:
		w.logger.Warn("audit buffer full, dropping entry", "action", e.Action, "resource", e.ResourceType)
	}
}

// RecordSecurityEvent implements tenancy.SecurityEventRecorder: it shapes a
// SecurityEvent from a kind/actor/details map and enqueues it synchronously
// enough to satisfy the interface while still never blocking on I/O.
func (w *Writer) RecordSecurityEvent(ctx context.Context, kind string, actorID *uuid.UUID, details map[string]any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshalling security event details: %w", err)
	}
	e := SecurityEvent{
		ID:        uuid.New(),
		Kind:      kind,
		Details:   raw,
		CreatedAt: time.Now().UTC(),
	}
	if actorID != nil {
		e.ActorID = pgtype.UUID{Bytes: *actorID, Valid: true}
	}
	select {
	case w.security <- e:
	default:
		w.logger.Warn("security event buffer full, dropping entry", "kind", kind)
	}

	if w.slack != nil && w.slack.IsEnabled() {
		info := slack.SecurityEventInfo{
			EventID:  e.ID.String(),
			Kind:     kind,
			Severity: severityFor(kind),
		}
		if actorID != nil {
			info.PrincipalID = actorID.String()
		}
		go func() {
			postCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, _, err := w.slack.PostSecurityEvent(postCtx, info); err != nil {
				w.logger.Warn("posting security event to slack", "error", err, "kind", kind)
			}
		}()
	}
	return nil
}

// LogFromRequest enqueues an audit event populated from request context:
// actor, shop binding, client IP.
func (w *Writer) LogFromRequest(r *http.Request, action, resourceType string, resourceID uuid.UUID, before, after json.RawMessage, actorID *uuid.UUID, shopID *uuid.UUID) {
	e := AuditEvent{
		Action:       action,
		ResourceType: resourceType,
		Before:       before,
		After:        after,
	}
	if resourceID != uuid.Nil {
		e.ResourceID = pgtype.UUID{Bytes: resourceID, Valid: true}
	}
	if actorID != nil {
		e.ActorID = pgtype.UUID{Bytes: *actorID, Valid: true}
	}
	if shopID != nil {
		e.ShopID = pgtype.UUID{Bytes: *shopID, Valid: true}
	}
	if ip := clientIP(r); ip.IsValid() {
		e.IPAddress = &ip
	}
	w.LogAudit(e)
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	auditBatch := make([]AuditEvent, 0, flushBatch)
	securityBatch := make([]SecurityEvent, 0, flushBatch)

	flush := func() {
		if len(auditBatch) > 0 {
			w.flushAudit(auditBatch)
			auditBatch = auditBatch[:0]
		}
		if len(securityBatch) > 0 {
			w.flushSecurity(securityBatch)
			securityBatch = securityBatch[:0]
		}
	}

	auditClosed, securityClosed := false, false
	for {
		select {
		case e, ok := <-w.audit:
			if !ok {
				auditClosed = true
				w.audit = nil
				continue
			}
			auditBatch = append(auditBatch, e)
			if len(auditBatch) >= flushBatch {
				flush()
			}
		case e, ok := <-w.security:
			if !ok {
				securityClosed = true
				w.security = nil
				continue
			}
			securityBatch = append(securityBatch, e)
			if len(securityBatch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			flush()
			return
		}
		if auditClosed && securityClosed {
			flush()
			return
		}
	}
}

func (w *Writer) flushAudit(events []AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range events {
		if _, err := w.pool.Exec(ctx, `
			INSERT INTO audit_events (id, actor_id, shop_id, action, resource_type, resource_id, before, after, ip_address, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			e.ID, e.ActorID, e.ShopID, e.Action, e.ResourceType, e.ResourceID, e.Before, e.After, ipText(e.IPAddress), e.CreatedAt); err != nil {
			w.logger.Error("writing audit event", "error", err, "action", e.Action, "resource_type", e.ResourceType)
		}
	}
}

func (w *Writer) flushSecurity(events []SecurityEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range events {
		if _, err := w.pool.Exec(ctx, `
			INSERT INTO security_events (id, actor_id, shop_id, kind, details, ip_address, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, e.ActorID, e.ShopID, e.Kind, e.Details, ipText(e.IPAddress), e.CreatedAt); err != nil {
			w.logger.Error("writing security event", "error", err, "kind", e.Kind)
		}
	}
}

func ipText(ip *netip.Addr) *string {
	if ip == nil {
		return nil
	}
	s := ip.String()
	return &s
}

// clientIP extracts the client IP, preferring X-Forwarded-For/X-Real-IP
// over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
