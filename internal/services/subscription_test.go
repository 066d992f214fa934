package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/repoviral/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProduct = "rczekx"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte("resource_name=sale&email=a%40b.com")
	secret := "webhook-secret"

	assert.True(t, VerifySignature(secret, sign(secret, body), body))
	assert.False(t, VerifySignature(secret, sign("other-secret", body), body))
	assert.False(t, VerifySignature(secret, sign(secret, []byte("tampered")), body))
	assert.False(t, VerifySignature(secret, "", body))
}

func TestParseEventKind(t *testing.T) {
	assert.Equal(t, EventSale, ParseEventKind("sale"))
	assert.Equal(t, EventCancellation, ParseEventKind("cancellation"))
	assert.Equal(t, EventRefund, ParseEventKind("refund"))
	assert.Equal(t, EventPing, ParseEventKind("ping"))
	assert.Equal(t, EventOther, ParseEventKind("subscription_updated"))
	assert.Equal(t, EventOther, ParseEventKind(""))
}

func TestHandleSaleUpgradesExistingUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	require.NoError(t, db.Create(&models.UserUsage{
		UserID:     "user-1",
		Email:      "buyer@example.com",
		UsageCount: 1,
	}).Error)

	outcome, err := svc.Handle(SubscriptionEvent{
		Kind:             EventSale,
		Email:            "buyer@example.com",
		ProductPermalink: testProduct,
		SubscriptionID:   "sub-1",
		LicenseKey:       "lic-1",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	var user models.UserUsage
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&user).Error)
	assert.True(t, user.IsPro)
	assert.Equal(t, "sub-1", user.GumroadSubscriptionID)
	assert.Equal(t, "lic-1", user.GumroadLicenseKey)
	assert.Equal(t, 1, user.UsageCount)
}

func TestHandleSaleWrongProduct(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	require.NoError(t, db.Create(&models.UserUsage{
		UserID: "user-1",
		Email:  "buyer@example.com",
	}).Error)

	outcome, err := svc.Handle(SubscriptionEvent{
		Kind:             EventSale,
		Email:            "buyer@example.com",
		ProductPermalink: "someone-elses-product",
	})
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "wrong product", outcome.Reason)

	var user models.UserUsage
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&user).Error)
	assert.False(t, user.IsPro)
}

func TestHandleSaleProvisionsPendingUser(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	outcome, err := svc.Handle(SubscriptionEvent{
		Kind:             EventSale,
		Email:            "new@example.com",
		ProductPermalink: testProduct,
		SubscriptionID:   "sub-2",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	var user models.UserUsage
	require.NoError(t, db.Where("email = ?", "new@example.com").First(&user).Error)
	assert.True(t, strings.HasPrefix(user.UserID, PendingUserPrefix))
	assert.True(t, user.IsPro)
	assert.Equal(t, 0, user.UsageCount)
	assert.Equal(t, "sub-2", user.GumroadSubscriptionID)
}

func TestHandleCancellationDowngrades(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	require.NoError(t, db.Create(&models.UserUsage{
		UserID:                "user-1",
		Email:                 "buyer@example.com",
		IsPro:                 true,
		GumroadSubscriptionID: "sub-1",
	}).Error)

	for i := 0; i < 2; i++ {
		// Re-delivery of the same event is idempotent
		outcome, err := svc.Handle(SubscriptionEvent{
			Kind:  EventCancellation,
			Email: "buyer@example.com",
		})
		require.NoError(t, err)
		assert.True(t, outcome.Applied)
	}

	var user models.UserUsage
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&user).Error)
	assert.False(t, user.IsPro)
	// Identifiers survive for audit, only the entitlement flips
	assert.Equal(t, "sub-1", user.GumroadSubscriptionID)
}

func TestHandleRefundDowngrades(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	require.NoError(t, db.Create(&models.UserUsage{
		UserID: "user-1",
		Email:  "buyer@example.com",
		IsPro:  true,
	}).Error)

	outcome, err := svc.Handle(SubscriptionEvent{Kind: EventRefund, Email: "buyer@example.com"})
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	var user models.UserUsage
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&user).Error)
	assert.False(t, user.IsPro)
}

func TestHandlePingIgnored(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	outcome, err := svc.Handle(SubscriptionEvent{Kind: EventPing, Email: "any@example.com"})
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "test event", outcome.Reason)

	var count int64
	require.NoError(t, db.Model(&models.UserUsage{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestHandleMissingEmail(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	outcome, err := svc.Handle(SubscriptionEvent{Kind: EventSale, ProductPermalink: testProduct})
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "no email", outcome.Reason)
}

func TestHandleUnknownKind(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubscriptionService(db, testProduct)

	outcome, err := svc.Handle(SubscriptionEvent{Kind: EventOther, Email: "any@example.com"})
	require.NoError(t, err)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "unhandled event", outcome.Reason)
}
