package referral

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beautymarket/backend/internal/apperror"
	"github.com/beautymarket/backend/pkg/notification"
	"github.com/beautymarket/backend/pkg/points"
)

// Rates is the per-tier commission configuration (fraction of
// eligibleAmount).
type Rates struct {
	Standard   float64
	Influencer float64
}

// Service implements the C9 public operations.
type Service struct {
	store     *Store
	points    *points.Service
	notify    *notification.Store
	pool      *pgxpool.Pool
	rates     Rates
	threshold InfluencerThreshold
	logger    *slog.Logger
}

// NewService creates a referral Service.
func NewService(pool *pgxpool.Pool, pointsSvc *points.Service, notifyStore *notification.Store, rates Rates, threshold InfluencerThreshold, logger *slog.Logger) *Service {
	return &Service{
		store:     NewStore(pool),
		points:    pointsSvc,
		notify:    notifyStore,
		pool:      pool,
		rates:     rates,
		threshold: threshold,
		logger:    logger,
	}
}

// IssueCode generates and persists a new user's stable referral code.
func (s *Service) IssueCode(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("generating referral code: %w", err)
	}
	if err := s.store.IssueCode(ctx, userID, code); err != nil {
		return "", err
	}
	return code, nil
}

// SetReferredBy records referredByCode for userID, after verifying the
// relationship would not introduce a cycle and that referrerId != referredId.
func (s *Service) SetReferredBy(ctx context.Context, userID uuid.UUID, referredByCode string) error {
	referrerID, err := s.store.GetByCode(ctx, referredByCode)
	if err != nil {
		return apperror.Wrap(apperror.KindValidation, "unknown referral code", err)
	}
	if referrerID == userID {
		return apperror.New(apperror.KindValidation, "cannot refer yourself")
	}

	chain, err := s.store.WalkChain(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("walking referral chain: %w", err)
	}
	for _, id := range chain {
		if id == userID {
			return apperror.New(apperror.KindValidation, "referral would introduce a cycle")
		}
	}

	if err := s.store.SetReferredBy(ctx, userID, referredByCode); err != nil {
		if err == pgx.ErrNoRows {
			return apperror.New(apperror.KindConflictState, "referred_by_code already set")
		}
		return err
	}
	return nil
}

// maybePromoteToInfluencer evaluates referrerID against the configured
// threshold (successful referrals + lifetime commission) and promotes
// idempotently within tx when both bars are cleared.
func (s *Service) maybePromoteToInfluencer(ctx context.Context, tx pgx.Tx, referrerID uuid.UUID) error {
	count, err := s.store.SuccessfulReferralCount(ctx, tx, referrerID)
	if err != nil {
		return err
	}
	if count < s.threshold.MinReferrals {
		return nil
	}
	lifetime, err := s.store.LifetimeCommission(ctx, tx, referrerID)
	if err != nil {
		return err
	}
	if lifetime < s.threshold.MinLifetimeCommission {
		return nil
	}
	return s.store.PromoteToInfluencer(ctx, tx, referrerID)
}

// CreditCommissionTx resolves payeeID's referrer (if any) and credits them
// the commission on a settled payment, within tx, so the credit commits
// atomically with the triggering payment's confirmation. Returns the
// referrer ID and bonus amount credited, or (uuid.Nil, 0, nil) if payeeID
// has no referrer.
func (s *Service) CreditCommissionTx(ctx context.Context, tx pgx.Tx, payeeID, paymentID uuid.UUID, eligibleAmount int64) (uuid.UUID, int64, error) {
	payee, err := s.store.GetCode(ctx, payeeID)
	if err != nil {
		return uuid.Nil, 0, nil // no referral_codes row: not a referred user, done
	}
	if payee.ReferredByCode == nil {
		return uuid.Nil, 0, nil
	}

	referrerID, err := s.store.GetByCode(ctx, *payee.ReferredByCode)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("resolving referrer: %w", err)
	}

	referrer, err := s.store.GetCode(ctx, referrerID)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("loading referrer tier: %w", err)
	}

	rate := RateFor(referrer.Tier, s.rates.Standard, s.rates.Influencer)
	bonus := ComputeBonus(eligibleAmount, rate)
	if bonus <= 0 {
		return referrerID, 0, nil
	}

	if _, err := s.points.Store().Credit(ctx, tx, referrerID, bonus, points.TypeEarnedReferral, &paymentID, &referrerID, nil); err != nil {
		return uuid.Nil, 0, fmt.Errorf("crediting referral commission: %w", err)
	}

	if err := s.store.CreateRelationship(ctx, tx, &Referral{ReferrerID: referrerID, ReferredID: payeeID, BonusAmount: bonus}); err != nil {
		return uuid.Nil, 0, err
	}

	if err := s.maybePromoteToInfluencer(ctx, tx, referrerID); err != nil {
		return uuid.Nil, 0, fmt.Errorf("evaluating influencer promotion: %w", err)
	}

	referredEmail, err := s.store.PrincipalEmail(ctx, tx, payeeID)
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("resolving referred principal: %w", err)
	}
	if err := s.notify.Enqueue(ctx, tx, &notification.Job{
		UserID:        referrerID,
		TemplateID:    "referral_credit",
		Params:        map[string]string{"name": referredEmail, "points": fmt.Sprint(bonus)},
		CorrelationID: paymentID.String() + ":referral_credit",
	}); err != nil {
		return uuid.Nil, 0, fmt.Errorf("enqueuing referral credit notification: %w", err)
	}

	return referrerID, bonus, nil
}

func randomCode() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)), nil
}
