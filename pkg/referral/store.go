package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides raw-SQL persistence for referral codes and relationships.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetCode loads a user's referral code row.
func (s *Store) GetCode(ctx context.Context, userID uuid.UUID) (*Code, error) {
	var c Code
	c.UserID = userID
	err := s.pool.QueryRow(ctx, `
		SELECT referral_code, referred_by_code, tier, is_influencer, influencer_qualified_at
		FROM referral_codes WHERE user_id = $1`, userID).
		Scan(&c.ReferralCode, &c.ReferredByCode, &c.Tier, &c.IsInfluencer, &c.InfluencerQualifiedAt)
	if err != nil {
		return nil, fmt.Errorf("loading referral code for %s: %w", userID, err)
	}
	return &c, nil
}

// GetByCode resolves the user ID owning a referral code.
func (s *Store) GetByCode(ctx context.Context, code string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM referral_codes WHERE referral_code = $1`, code).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolving referral code %q: %w", code, err)
	}
	return userID, nil
}

// IssueCode creates a user's own stable referral code at account creation.
func (s *Store) IssueCode(ctx context.Context, userID uuid.UUID, code string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO referral_codes (user_id, referral_code, tier) VALUES ($1, $2, $3)`,
		userID, code, TierStandard)
	if err != nil {
		return fmt.Errorf("issuing referral code: %w", err)
	}
	return nil
}

// SetReferredBy records the code that referred userID. Weak reference, set
// once at onboarding and never changed thereafter.
func (s *Store) SetReferredBy(ctx context.Context, userID uuid.UUID, code string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE referral_codes SET referred_by_code = $1 WHERE user_id = $2 AND referred_by_code IS NULL`,
		code, userID)
	if err != nil {
		return fmt.Errorf("setting referred_by_code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// PromoteToInfluencer upgrades a user's commission tier within tx,
// idempotently: the WHERE clause makes a repeat call a no-op rather than
// overwriting an already-recorded influencer_qualified_at.
func (s *Store) PromoteToInfluencer(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE referral_codes SET tier = $1, is_influencer = true, influencer_qualified_at = $2
		WHERE user_id = $3 AND is_influencer = false`,
		TierInfluencer, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("promoting to influencer: %w", err)
	}
	return nil
}

// SuccessfulReferralCount counts active referral relationships attributed
// to referrerID, for influencer-threshold evaluation.
func (s *Store) SuccessfulReferralCount(ctx context.Context, tx pgx.Tx, referrerID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM referrals WHERE referrer_id = $1 AND status = $2`, referrerID, StatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting successful referrals: %w", err)
	}
	return count, nil
}

// LifetimeCommission sums the commission ever credited to referrerID, for
// influencer-threshold evaluation.
func (s *Store) LifetimeCommission(ctx context.Context, tx pgx.Tx, referrerID uuid.UUID) (int64, error) {
	var sum int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(bonus_amount), 0) FROM referrals WHERE referrer_id = $1`, referrerID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("summing lifetime commission: %w", err)
	}
	return sum, nil
}

// PrincipalEmail resolves a principal's email within tx, used to personalize
// the referral-credit notification.
func (s *Store) PrincipalEmail(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (string, error) {
	var email string
	if err := tx.QueryRow(ctx, `SELECT email FROM principals WHERE id = $1`, userID).Scan(&email); err != nil {
		return "", fmt.Errorf("loading principal email: %w", err)
	}
	return email, nil
}

// WalkChain follows referred_by_code backward from startUserID up to
// maxChainDepth hops, returning the chain of user IDs visited (not
// including startUserID itself). Used to detect cycles before accepting a
// new referred_by_code.
func (s *Store) WalkChain(ctx context.Context, startUserID uuid.UUID) ([]uuid.UUID, error) {
	var chain []uuid.UUID
	currentUser := startUserID

	for i := 0; i < maxChainDepth; i++ {
		var referredByCode *string
		err := s.pool.QueryRow(ctx, `SELECT referred_by_code FROM referral_codes WHERE user_id = $1`, currentUser).
			Scan(&referredByCode)
		if err != nil {
			return chain, nil
		}
		if referredByCode == nil {
			return chain, nil
		}

		referrerID, err := s.GetByCode(ctx, *referredByCode)
		if err != nil {
			return chain, nil
		}
		chain = append(chain, referrerID)
		currentUser = referrerID
	}

	return chain, nil
}

// CreateRelationship inserts the referral relationship row within tx.
func (s *Store) CreateRelationship(ctx context.Context, tx pgx.Tx, r *Referral) error {
	r.CreatedAt = time.Now().UTC()
	r.Status = StatusActive
	_, err := tx.Exec(ctx, `
		INSERT INTO referrals (referrer_id, referred_id, status, bonus_amount, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (referrer_id, referred_id) DO UPDATE SET bonus_amount = referrals.bonus_amount + EXCLUDED.bonus_amount`,
		r.ReferrerID, r.ReferredID, r.Status, r.BonusAmount, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting referral relationship: %w", err)
	}
	return nil
}
