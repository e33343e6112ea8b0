package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with financial or legal significance:
	// verified payments and completed registrations.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication outcomes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine funnel activity. It can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. No raw phone numbers,
// emails or passwords go in here.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the wizard session ID or the upstream user ID.
	Subject string
	Action  string
	// Decision is the outcome ("ok", "rejected", "dismissed", ...).
	Decision string
	Reason   string
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string
	ActorID   string
}

type AuditEvent string

const (
	// Wizard funnel
	EventWizardStarted         AuditEvent = "wizard_started"
	EventOTPRequested          AuditEvent = "otp_requested"
	EventOTPVerified           AuditEvent = "otp_verified"
	EventOTPRejected           AuditEvent = "otp_rejected"
	EventPaymentInitiated      AuditEvent = "payment_initiated"
	EventPaymentVerified       AuditEvent = "payment_verified"
	EventPaymentFailed         AuditEvent = "payment_failed"
	EventPaymentDismissed      AuditEvent = "payment_dismissed"
	EventRegistrationSubmitted AuditEvent = "registration_submitted"
	EventRegistrationFailed    AuditEvent = "registration_failed"

	// Attribution
	EventVisitTracked AuditEvent = "visit_tracked"

	// Partner and admin login
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginFailed    AuditEvent = "login_failed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventPaymentVerified:       CategoryCompliance,
	EventRegistrationSubmitted: CategoryCompliance,

	EventLoginSucceeded: CategorySecurity,
	EventLoginFailed:    CategorySecurity,

	EventWizardStarted:      CategoryOperations,
	EventOTPRequested:       CategoryOperations,
	EventOTPVerified:        CategoryOperations,
	EventOTPRejected:        CategoryOperations,
	EventPaymentInitiated:   CategoryOperations,
	EventPaymentFailed:      CategoryOperations,
	EventPaymentDismissed:   CategoryOperations,
	EventRegistrationFailed: CategoryOperations,
	EventVisitTracked:       CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by stores that can be queried.
type Reader interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
