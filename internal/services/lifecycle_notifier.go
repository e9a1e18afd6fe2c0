package services

import (
	"context"
	"strings"
	"time"

	"gift-backend/internal/interfaces"
	"gift-backend/internal/metrics"
	"gift-backend/internal/models"
	"gift-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LifecyclePusher receives lifecycle events for live subscribers
type LifecyclePusher interface {
	PushLifecycleEvent(event *interfaces.LifecycleEvent)
}

// LifecycleNotifier fans a gift state change out to the audit log, the
// message broker and websocket subscribers. Failures are logged only.
type LifecycleNotifier struct {
	audit        repository.GiftAuditRepository
	publisher    interfaces.EventPublisher
	pusher       LifecyclePusher
	claimBaseURL string
	now          func() time.Time
	logger       *logrus.Logger
}

// NewLifecycleNotifier any sink may be nil
func NewLifecycleNotifier(
	audit repository.GiftAuditRepository,
	publisher interfaces.EventPublisher,
	pusher LifecyclePusher,
	claimBaseURL string,
	logger *logrus.Logger,
) *LifecycleNotifier {
	return &LifecycleNotifier{
		audit:        audit,
		publisher:    publisher,
		pusher:       pusher,
		claimBaseURL: strings.TrimRight(claimBaseURL, "/"),
		now:          time.Now,
		logger:       logger,
	}
}

// LifecycleNote one state change worth recording
type LifecycleNote struct {
	EventType string
	Code      string
	Detail    string
	// Token is set once a claim token exists so the notification can carry a claim link.
	Token string
}

// Notify records the note for gift on every configured sink.
func (n *LifecycleNotifier) Notify(ctx context.Context, gift *models.GiftRecord, note LifecycleNote) {
	if n == nil {
		return
	}
	now := n.now().UTC()
	eventID := uuid.New().String()
	fields := logrus.Fields{
		"commitment_hash": gift.CommitmentHash,
		"event_type":      note.EventType,
		"status":          gift.Status,
	}

	if n.audit != nil {
		err := n.audit.Append(ctx, &models.GiftAuditEvent{
			ID:             eventID,
			CommitmentHash: gift.CommitmentHash,
			EventType:      note.EventType,
			Status:         gift.Status,
			Code:           note.Code,
			Detail:         note.Detail,
			CreatedAt:      now,
		})
		if err != nil {
			metrics.EventPublishFailures.WithLabelValues("audit").Inc()
			n.logger.WithFields(fields).WithError(err).Warn("⚠️ Failed to append audit event")
		}
	}

	event := &interfaces.LifecycleEvent{
		EventID:        eventID,
		CommitmentHash: gift.CommitmentHash,
		Status:         gift.Status,
		Code:           note.Code,
		Timestamp:      now.Unix(),
	}
	if gift.ScheduledAt != nil {
		event.ScheduledAt = gift.ScheduledAt.UTC().Format(time.RFC3339)
	}
	if note.Token != "" {
		event.Recipient = gift.Recipient
		if n.claimBaseURL != "" {
			event.ClaimURL = n.claimBaseURL + "/claim/" + note.Token
		}
	}

	if n.publisher != nil {
		if err := n.publisher.PublishLifecycleEvent(ctx, event); err != nil {
			metrics.EventPublishFailures.WithLabelValues("broker").Inc()
			n.logger.WithFields(fields).WithError(err).Warn("⚠️ Failed to publish lifecycle event")
		}
	}

	if n.pusher != nil {
		n.pusher.PushLifecycleEvent(event)
	}
}
