package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gift-backend/internal/config"
	"gift-backend/internal/errs"
	"gift-backend/internal/metrics"
	"gift-backend/internal/models"
	"gift-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Verifier decides whether a payment proof may back a gift
type Verifier interface {
	Verify(ctx context.Context, proof *models.PaymentProof) models.VerificationVerdict
}

// CreateGiftRequest inbound submission
type CreateGiftRequest struct {
	Proof         models.PaymentProof
	Recipient     string
	Message       string
	Theme         string
	TokenSymbol   string
	TokenAmount   decimal.Decimal
	USDEquivalent decimal.Decimal
	ScheduledAt   *time.Time
}

// CreateGiftResult token plus the record it encodes
type CreateGiftResult struct {
	ClaimToken string
	Status     models.GiftStatus
	Gift       *models.GiftRecord
}

// ClaimResult token carrying the CLAIMED record
type ClaimResult struct {
	ClaimToken string
	Gift       *models.GiftRecord
	// AlreadyClaimed is set when an earlier claim was returned idempotently.
	AlreadyClaimed bool
}

// IssuanceOrchestrator drives validate -> verify -> issue -> encode and owns
// every GiftRecord transition
type IssuanceOrchestrator struct {
	verifier    Verifier
	gateway     CardIssuerGateway
	codec       *GiftCodec
	claims      repository.ClaimRepository
	notifier    *LifecycleNotifier
	claimPolicy string
	now         func() time.Time
	logger      *logrus.Logger
}

// NewIssuanceOrchestrator notifier may be nil
func NewIssuanceOrchestrator(
	verifier Verifier,
	gateway CardIssuerGateway,
	codec *GiftCodec,
	claims repository.ClaimRepository,
	notifier *LifecycleNotifier,
	claimPolicy string,
	logger *logrus.Logger,
) *IssuanceOrchestrator {
	if claimPolicy == "" {
		claimPolicy = config.ClaimPolicyIdempotent
	}
	return &IssuanceOrchestrator{
		verifier:    verifier,
		gateway:     gateway,
		codec:       codec,
		claims:      claims,
		notifier:    notifier,
		claimPolicy: claimPolicy,
		now:         time.Now,
		logger:      logger,
	}
}

func validateCreateRequest(req *CreateGiftRequest) error {
	switch {
	case strings.TrimSpace(req.Recipient) == "":
		return errors.New("recipient is required")
	case strings.TrimSpace(req.TokenSymbol) == "":
		return errors.New("token symbol is required")
	case req.TokenAmount.IsNegative():
		return errors.New("token amount must not be negative")
	case !req.USDEquivalent.IsPositive():
		return errors.New("usd equivalent must be positive")
	case strings.TrimSpace(req.Proof.Commitment) == "":
		return errors.New("commitment is required")
	}
	return nil
}

// CreateGift runs the pipeline once. No step is retried at this layer.
// Caller cancellation before the nullifier is consumed aborts with nothing
// committed; after that point the pipeline always reaches CARD_ISSUED or FAILED.
func (o *IssuanceOrchestrator) CreateGift(ctx context.Context, req CreateGiftRequest) (*CreateGiftResult, error) {
	if err := validateCreateRequest(&req); err != nil {
		return nil, o.phaseFailure(errs.PhaseRequest, errs.CodeInvalidRequest, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := o.now().UTC()
	gift := &models.GiftRecord{
		ID:             uuid.New().String(),
		CommitmentHash: CommitmentHash(req.Proof.Commitment),
		Recipient:      strings.TrimSpace(req.Recipient),
		Message:        req.Message,
		Theme:          req.Theme,
		TokenSymbol:    strings.ToUpper(strings.TrimSpace(req.TokenSymbol)),
		TokenAmount:    req.TokenAmount,
		USDEquivalent:  req.USDEquivalent,
		Status:         models.GiftStatusCreated,
		CreatedAt:      now,
	}
	if req.ScheduledAt != nil {
		scheduled := req.ScheduledAt.UTC()
		gift.ScheduledAt = &scheduled
	}

	log := o.logger.WithFields(logrus.Fields{
		"gift_id":         gift.ID,
		"commitment_hash": gift.CommitmentHash,
	})
	log.Info("🎁 Gift submission received")

	proof := req.Proof
	verdict := o.verifier.Verify(ctx, &proof)
	if !verdict.Verified {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("Gift submission cancelled during verification")
			return nil, err
		}
		_ = gift.Fail(verdict.Reason)
		o.notify(context.WithoutCancel(ctx), gift, LifecycleNote{
			EventType: models.AuditEventVerifyFailed,
			Code:      string(verdict.Code),
			Detail:    verdict.Reason,
		})
		metrics.GiftsCreated.WithLabelValues(string(gift.Status)).Inc()
		log.WithField("code", verdict.Code).Warn("❌ Payment verification failed")
		return nil, o.phaseFailure(errs.PhasePaymentVerification, verdict.Code, verdict.Reason)
	}

	// the payment is spent from here on
	work := context.WithoutCancel(ctx)

	if err := gift.TransitionTo(models.GiftStatusFunded); err != nil {
		return nil, o.phaseFailure(errs.PhasePaymentVerification, errs.CodeInvalidTransition, err.Error())
	}
	o.notify(work, gift, LifecycleNote{EventType: models.AuditEventVerified})

	card, err := o.gateway.Issue(work, IssueCardRequest{
		USDAmount:      gift.USDEquivalent,
		Recipient:      gift.Recipient,
		CommitmentHash: gift.CommitmentHash,
	})
	if err != nil {
		code := errs.CodeOf(err)
		reason := "card issuer rejected the request"
		_ = gift.Fail(reason)
		o.notify(work, gift, LifecycleNote{
			EventType: models.AuditEventIssueFailed,
			Code:      string(code),
			Detail:    err.Error(),
		})
		metrics.GiftsCreated.WithLabelValues(string(gift.Status)).Inc()
		log.WithError(err).Error("❌ Card issuance failed after payment was consumed")
		return nil, o.phaseFailure(errs.PhaseCardIssuance, code, reason)
	}

	gift.Card = card
	if err := gift.TransitionTo(models.GiftStatusCardIssued); err != nil {
		return nil, o.phaseFailure(errs.PhaseCardIssuance, errs.CodeInvalidTransition, err.Error())
	}
	o.notify(work, gift, LifecycleNote{
		EventType: models.AuditEventCardIssued,
		Detail:    fmt.Sprintf("card %s protocol_backed=%v", card.MaskedNumber, card.IsProtocolBacked),
	})

	deliveredAt := o.now().UTC()
	next := gift.DeliveryStatus(deliveredAt)
	if err := gift.TransitionTo(next); err != nil {
		return nil, o.phaseFailure(errs.PhaseCardIssuance, errs.CodeInvalidTransition, err.Error())
	}
	if next == models.GiftStatusDelivered {
		gift.DeliveredAt = &deliveredAt
	}

	token, err := o.codec.Encode(gift)
	if err != nil {
		log.WithError(err).Error("❌ Failed to encode claim token")
		return nil, o.phaseFailure(errs.PhaseEncoding, errs.CodeInternal, "could not encode claim token")
	}

	eventType := models.AuditEventDelivered
	if next == models.GiftStatusWaitingForDelivery {
		eventType = models.AuditEventWaiting
	}
	o.notify(work, gift, LifecycleNote{EventType: eventType, Token: token})

	metrics.GiftsCreated.WithLabelValues(string(gift.Status)).Inc()
	log.WithFields(logrus.Fields{
		"status":          gift.Status,
		"protocol_backed": card.IsProtocolBacked,
	}).Info("✅ Gift issued")

	return &CreateGiftResult{ClaimToken: token, Status: gift.Status, Gift: gift}, nil
}

// Read decodes a token into a masked view with its effective status. Read never writes.
func (o *IssuanceOrchestrator) Read(ctx context.Context, token string) (*models.GiftRecord, error) {
	gift, err := o.decode(token, errs.PhaseRequest)
	if err != nil {
		return nil, err
	}

	view := gift.Masked()
	view.Status = gift.EffectiveStatus(o.now())
	if gift.Status == models.GiftStatusWaitingForDelivery && view.Status == models.GiftStatusDelivered {
		deliveredAt := gift.ScheduledAt.UTC()
		view.DeliveredAt = &deliveredAt
	}

	// a newer token may already have been claimed
	if view.Status != models.GiftStatusClaimed && o.claims != nil {
		claim, err := o.claims.GetByCommitmentHash(ctx, gift.CommitmentHash)
		switch {
		case err == nil:
			claimedAt := claim.ClaimedAt.UTC()
			view.Status = models.GiftStatusClaimed
			view.ClaimedAt = &claimedAt
		case errors.Is(err, repository.ErrNotFound):
		default:
			o.logger.WithError(err).WithField("commitment_hash", gift.CommitmentHash).
				Warn("⚠️ Claim registry lookup failed, showing token status")
		}
	}
	return view, nil
}

// Claim moves a delivered gift to CLAIMED. It never re-verifies payment and
// never re-issues the card.
func (o *IssuanceOrchestrator) Claim(ctx context.Context, token string) (*ClaimResult, error) {
	gift, err := o.decode(token, errs.PhaseClaim)
	if err != nil {
		return nil, err
	}

	log := o.logger.WithField("commitment_hash", gift.CommitmentHash)
	now := o.now().UTC()

	switch gift.EffectiveStatus(now) {
	case models.GiftStatusClaimed:
		return o.repeatClaim(ctx, gift, token)
	case models.GiftStatusDelivered:
		if gift.Status == models.GiftStatusWaitingForDelivery {
			if err := gift.TransitionTo(models.GiftStatusDelivered); err != nil {
				return nil, o.phaseFailure(errs.PhaseClaim, errs.CodeInvalidTransition, err.Error())
			}
			deliveredAt := gift.ScheduledAt.UTC()
			gift.DeliveredAt = &deliveredAt
		}
	case models.GiftStatusWaitingForDelivery:
		log.Info("Gift claimed before its scheduled delivery")
	default:
		metrics.GiftClaims.WithLabelValues("invalid_state").Inc()
		return nil, o.phaseFailure(errs.PhaseClaim, errs.CodeInvalidTransition,
			fmt.Sprintf("gift in status %s cannot be claimed", gift.Status))
	}

	stored, created, err := o.claims.Record(ctx, &models.GiftClaim{
		CommitmentHash: gift.CommitmentHash,
		GiftID:         gift.ID,
		ClaimedAt:      now,
	})
	if err != nil {
		log.WithError(err).Error("❌ Failed to record claim")
		return nil, o.phaseFailure(errs.PhaseClaim, errs.CodeInternal, "could not record claim")
	}
	if !created && o.claimPolicy == config.ClaimPolicyReject {
		metrics.GiftClaims.WithLabelValues("rejected").Inc()
		o.notify(context.WithoutCancel(ctx), gift, LifecycleNote{
			EventType: models.AuditEventClaimRejected,
			Code:      string(errs.CodeAlreadyClaimed),
		})
		return nil, o.phaseFailure(errs.PhaseClaim, errs.CodeAlreadyClaimed, "gift has already been claimed")
	}

	if err := gift.TransitionTo(models.GiftStatusClaimed); err != nil {
		return nil, o.phaseFailure(errs.PhaseClaim, errs.CodeInvalidTransition, err.Error())
	}
	claimedAt := stored.ClaimedAt.UTC()
	gift.ClaimedAt = &claimedAt

	claimedToken, err := o.codec.Encode(gift)
	if err != nil {
		log.WithError(err).Error("❌ Failed to encode claimed token")
		return nil, o.phaseFailure(errs.PhaseEncoding, errs.CodeInternal, "could not encode claim token")
	}

	if created {
		metrics.GiftClaims.WithLabelValues("claimed").Inc()
		o.notify(context.WithoutCancel(ctx), gift, LifecycleNote{EventType: models.AuditEventClaimed})
		log.Info("🎊 Gift claimed")
	} else {
		metrics.GiftClaims.WithLabelValues("idempotent").Inc()
	}

	return &ClaimResult{ClaimToken: claimedToken, Gift: gift, AlreadyClaimed: !created}, nil
}

// repeatClaim handles a token that already carries CLAIMED
func (o *IssuanceOrchestrator) repeatClaim(ctx context.Context, gift *models.GiftRecord, token string) (*ClaimResult, error) {
	if o.claimPolicy == config.ClaimPolicyReject {
		metrics.GiftClaims.WithLabelValues("rejected").Inc()
		o.notify(context.WithoutCancel(ctx), gift, LifecycleNote{
			EventType: models.AuditEventClaimRejected,
			Code:      string(errs.CodeAlreadyClaimed),
		})
		return nil, o.phaseFailure(errs.PhaseClaim, errs.CodeAlreadyClaimed, "gift has already been claimed")
	}
	metrics.GiftClaims.WithLabelValues("idempotent").Inc()
	return &ClaimResult{ClaimToken: token, Gift: gift, AlreadyClaimed: true}, nil
}

func (o *IssuanceOrchestrator) decode(token string, phase errs.Phase) (*models.GiftRecord, error) {
	gift, err := o.codec.Decode(token)
	if err != nil {
		metrics.CorruptTokens.Inc()
		return nil, o.phaseFailure(phase, errs.CodeCorruptToken, "claim token is invalid")
	}
	return gift, nil
}

func (o *IssuanceOrchestrator) notify(ctx context.Context, gift *models.GiftRecord, note LifecycleNote) {
	o.notifier.Notify(ctx, gift, note)
}

func (o *IssuanceOrchestrator) phaseFailure(phase errs.Phase, code errs.Code, reason string) error {
	metrics.GiftPhaseFailures.WithLabelValues(string(phase), string(code)).Inc()
	return errs.NewPhaseError(phase, code, reason)
}
