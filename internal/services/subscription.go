package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/repoviral/backend/internal/models"
	"gorm.io/gorm"
)

// EventKind is the Gumroad resource_name, as a typed enum so the dispatch
// keeps its explicit "unknown kind is an ignored success" default.
type EventKind int

const (
	EventOther EventKind = iota
	EventSale
	EventCancellation
	EventRefund
	EventPing
)

// ParseEventKind maps the resource_name form field to an EventKind.
func ParseEventKind(resourceName string) EventKind {
	switch resourceName {
	case "sale":
		return EventSale
	case "cancellation":
		return EventCancellation
	case "refund":
		return EventRefund
	case "ping":
		return EventPing
	default:
		return EventOther
	}
}

// SubscriptionEvent is an inbound payment-provider event. It is never
// persisted - only its effect on the user record is durable.
type SubscriptionEvent struct {
	Kind             EventKind
	Email            string
	ProductPermalink string
	SubscriptionID   string
	LicenseKey       string
}

// Outcome reports how an event was handled. Ignored outcomes still return
// success to the provider, since retrying them is useless.
type Outcome struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

func applied() Outcome              { return Outcome{Applied: true} }
func ignored(reason string) Outcome { return Outcome{Reason: reason} }

// SubscriptionService reconciles Gumroad events against user records.
type SubscriptionService struct {
	db      *gorm.DB
	product string
}

func NewSubscriptionService(db *gorm.DB, product string) *SubscriptionService {
	return &SubscriptionService{db: db, product: product}
}

// VerifySignature checks the hex HMAC-SHA256 of the raw request body.
func VerifySignature(secret, signature string, body []byte) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Handle dispatches one event. Re-processing an already-applied event is
// idempotent - the update writes the same entitlement again.
func (s *SubscriptionService) Handle(event SubscriptionEvent) (Outcome, error) {
	if event.Email == "" {
		return ignored("no email"), nil
	}

	switch event.Kind {
	case EventSale:
		if event.ProductPermalink != s.product {
			return ignored("wrong product"), nil
		}
		return s.applyEntitlement(event.Email, true, event.SubscriptionID, event.LicenseKey)
	case EventCancellation, EventRefund:
		return s.applyEntitlement(event.Email, false, "", "")
	case EventPing:
		return ignored("test event"), nil
	default:
		return ignored("unhandled event"), nil
	}
}

// applyEntitlement updates the user record matching the event's email, or
// provisions a pending record so an early purchaser who has never
// generated content keeps their entitlement.
func (s *SubscriptionService) applyEntitlement(email string, isPro bool, subscriptionID, licenseKey string) (Outcome, error) {
	var user models.UserUsage
	err := s.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{"is_pro": isPro}
		if subscriptionID != "" {
			updates["gumroad_subscription_id"] = subscriptionID
		}
		if licenseKey != "" {
			updates["gumroad_license_key"] = licenseKey
		}
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return Outcome{}, fmt.Errorf("failed to update entitlement: %w", err)
		}
		return applied(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Outcome{}, fmt.Errorf("entitlement lookup failed: %w", err)
	}

	record := models.UserUsage{
		UserID:                PendingUserPrefix + uuid.NewString(),
		Email:                 email,
		UsageCount:            0,
		IsPro:                 isPro,
		GumroadSubscriptionID: subscriptionID,
		GumroadLicenseKey:     licenseKey,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return Outcome{}, fmt.Errorf("failed to provision user for %s: %w", email, err)
	}
	return applied(), nil
}
