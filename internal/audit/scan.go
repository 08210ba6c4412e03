package audit

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

func scanAuditEvents(rows pgx.Rows) ([]AuditEvent, error) {
	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ShopID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Before, &e.After, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanSecurityEvents(rows pgx.Rows) ([]SecurityEvent, error) {
	var events []SecurityEvent
	for rows.Next() {
		var e SecurityEvent
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ShopID, &e.Kind, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning security event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
