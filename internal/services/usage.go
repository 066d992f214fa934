package services

import (
	"errors"
	"fmt"

	"github.com/repoviral/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FreeTierLimit is the number of generations a non-pro user gets.
const FreeTierLimit = 1

// PendingUserPrefix marks usage records provisioned by the subscription
// reconciler for emails that have never signed in. The governor claims
// such a record on the user's first quota check.
const PendingUserPrefix = "pending:"

var (
	// ErrLimitReached means the free quota is spent (payment required).
	ErrLimitReached = errors.New("free limit reached")
	// ErrGovernorUnavailable wraps store faults, which must not be
	// conflated with the limit condition.
	ErrGovernorUnavailable = errors.New("usage store unavailable")
)

// UsageService enforces the free-tier quota per user.
type UsageService struct {
	db *gorm.DB
}

func NewUsageService(db *gorm.DB) *UsageService {
	return &UsageService{db: db}
}

// CheckAndConsume spends one generation credit for the user, creating the
// usage record on first reference. The quota check and the increment are a
// single conditional UPDATE, so concurrent requests for the same user
// cannot both pass on the last free credit.
func (s *UsageService) CheckAndConsume(userID, email string) error {
	ok, err := s.tryConsume(userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// No qualifying row: the record exists and is over the limit, or the
	// user has never been seen.
	var existing models.UserUsage
	err = s.db.Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return ErrLimitReached
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrGovernorUnavailable, err)
	}

	// First sighting. An early purchaser may have a pending record from
	// the reconciler - claim it by email so the entitlement carries over.
	claimed, err := s.claimPending(userID, email)
	if err != nil {
		return err
	}
	if !claimed {
		record := models.UserUsage{
			UserID:     userID,
			Email:      email,
			UsageCount: 1,
			IsPro:      false,
		}
		res := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&record)
		if res.Error != nil {
			return fmt.Errorf("%w: %v", ErrGovernorUnavailable, res.Error)
		}
		if res.RowsAffected == 1 {
			// Creation itself granted and consumed the first free credit.
			return nil
		}
		// Lost a creation race - fall through to the conditional update.
	}

	ok, err = s.tryConsume(userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLimitReached
	}
	return nil
}

// tryConsume is the atomic check-then-increment: it only touches rows that
// are pro or still under the free limit.
func (s *UsageService) tryConsume(userID string) (bool, error) {
	res := s.db.Model(&models.UserUsage{}).
		Where("user_id = ? AND (is_pro = ? OR usage_count < ?)", userID, true, FreeTierLimit).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrGovernorUnavailable, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// claimPending rewrites a reconciler-provisioned record to the user's real
// id. The reconciler creates at most one pending record per email.
func (s *UsageService) claimPending(userID, email string) (bool, error) {
	res := s.db.Model(&models.UserUsage{}).
		Where("email = ? AND user_id LIKE ?", email, PendingUserPrefix+"%").
		Update("user_id", userID)
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", ErrGovernorUnavailable, res.Error)
	}
	return res.RowsAffected >= 1, nil
}

// Profile returns the usage record for a user.
func (s *UsageService) Profile(userID string) (*models.UserUsage, error) {
	var user models.UserUsage
	if err := s.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
