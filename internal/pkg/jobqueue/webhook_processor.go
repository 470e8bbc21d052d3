package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/korehq/korebank/app/models"
	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/metrics/counter"
	"github.com/korehq/korebank/internal/pkg/onepipe"
)

// MandateActivator flips a pending mandate to active by its request
// reference. Satisfied by the mandates service.
type MandateActivator interface {
	Activate(ctx context.Context, requestRef string) (*models.Mandate, error)
}

// WebhookProcessor finishes intake work the HTTP handler deferred: it
// correlates a stored provider event to its verification attempt, activates
// the matching mandate when the payload says the provider did, and marks the
// event processed. Safe to run more than once per event.
type WebhookProcessor struct {
	events   repository.WebhookEventRepository
	attempts repository.VerificationAttemptRepository
	mandates MandateActivator
	counters *counter.Counter
}

// NewWebhookProcessor creates a processor over the given repositories.
// mandates and counters may be nil; the corresponding steps are then skipped.
func NewWebhookProcessor(events repository.WebhookEventRepository, attempts repository.VerificationAttemptRepository, mandates MandateActivator, counters *counter.Counter) *WebhookProcessor {
	return &WebhookProcessor{events: events, attempts: attempts, mandates: mandates, counters: counters}
}

// Process handles a single job from the queue.
func (p *WebhookProcessor) Process(ctx context.Context, job *Job) error {
	if job.Type != JobTypeWebhookProcess {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	payload, err := WebhookProcessJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid webhook job payload: %w", err)
	}
	return p.ProcessEvent(ctx, payload.EventID)
}

// ProcessEvent correlates and flags a single stored event.
func (p *WebhookProcessor) ProcessEvent(ctx context.Context, eventID uint) error {
	event, err := p.events.GetByID(eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Event vanished; nothing left to do.
			return nil
		}
		return err
	}
	if event.Processed {
		return nil
	}

	var processingErr string
	var doc map[string]any
	var requestRef string
	if err := json.Unmarshal([]byte(event.PayloadJSON), &doc); err != nil {
		processingErr = fmt.Sprintf("unparseable payload: %v", err)
	} else if ref, ok := doc["request_ref"].(string); ok {
		requestRef = ref
	}

	if event.VerificationAttemptID == nil && requestRef != "" {
		attempt, err := p.attempts.GetByRequestRef(requestRef)
		switch {
		case err == nil:
			event.VerificationAttemptID = &attempt.ID
			if err := p.events.Update(event); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No matching attempt; the event stays unlinked.
		default:
			return err
		}
	}

	// Mandate activation is driven only by an explicit provider signal; any
	// other payload shape leaves mandate state alone.
	if p.mandates != nil && requestRef != "" && strings.EqualFold(onepipe.ExtractMandateStatus(doc), models.MandateStatusActive) {
		if _, err := p.mandates.Activate(ctx, requestRef); err != nil {
			log.Errorf("[JobQueue] Mandate activation for ref %s failed: %v", requestRef, err)
		}
	}

	if event.VerificationAttemptID != nil && p.counters != nil {
		if err := p.counters.AddWebhookDelivery(*event.VerificationAttemptID); err != nil {
			log.Errorf("[JobQueue] Failed to count webhook delivery for attempt %d: %v", *event.VerificationAttemptID, err)
		}
	}

	return p.events.MarkProcessed(event.ID, processingErr)
}
