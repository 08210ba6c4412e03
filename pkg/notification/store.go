package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides raw-SQL persistence for push tokens and the notification
// job queue.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RegisterToken upserts a device token as active for userID.
func (s *Store) RegisterToken(ctx context.Context, userID uuid.UUID, token, platform string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO push_tokens (id, user_id, token, platform, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,true,$5,$5)
		ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, active = true, updated_at = EXCLUDED.updated_at`,
		uuid.New(), userID, token, platform, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("registering push token: %w", err)
	}
	return nil
}

// DeactivateToken marks a token inactive, on an invalid_token provider
// response.
func (s *Store) DeactivateToken(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `UPDATE push_tokens SET active = false, updated_at = $1 WHERE token = $2`,
		time.Now().UTC(), token)
	if err != nil {
		return fmt.Errorf("deactivating push token: %w", err)
	}
	return nil
}

// ActiveTokensForUser resolves the audience→tokens index for a single user.
func (s *Store) ActiveTokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT token FROM push_tokens WHERE user_id = $1 AND active = true`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading active tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning push token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Enqueue inserts a notification job within tx, so it commits atomically
// with the state change that triggered it. The dispatcher drains the queue
// only after that transaction commits.
func (s *Store) Enqueue(ctx context.Context, tx pgx.Tx, j *Job) error {
	j.ID = uuid.New()
	j.CreatedAt = time.Now().UTC()

	params, err := json.Marshal(j.Params)
	if err != nil {
		return fmt.Errorf("marshaling notification params: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO notification_jobs (id, user_id, template_id, params, correlation_id, attempts, created_at)
		VALUES ($1,$2,$3,$4,$5,0,$6)`,
		j.ID, j.UserID, j.TemplateID, params, j.CorrelationID, j.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueuing notification job: %w", err)
	}
	return nil
}

// ClaimPending locks and returns up to limit unclaimed jobs, for a
// dispatcher worker tick. SKIP LOCKED lets multiple dispatcher replicas
// drain the same queue without contending on the same rows.
func (s *Store) ClaimPending(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM notification_jobs
		WHERE id IN (
			SELECT id FROM notification_jobs ORDER BY created_at LIMIT $1 FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, template_id, params, correlation_id, attempts, created_at`, limit)
	if err != nil {
		return nil, fmt.Errorf("claiming notification jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var j Job
		var rawParams []byte
		if err := rows.Scan(&j.ID, &j.UserID, &j.TemplateID, &rawParams, &j.CorrelationID, &j.Attempts, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification job: %w", err)
		}
		if len(rawParams) > 0 {
			if err := json.Unmarshal(rawParams, &j.Params); err != nil {
				return nil, fmt.Errorf("unmarshaling notification params: %w", err)
			}
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}
