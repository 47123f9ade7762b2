package repository

import (
	"context"
	"errors"
	"fmt"

	"hushfeed/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	TopByXP(ctx context.Context, limit int) ([]models.User, error)
	ListXPEvents(ctx context.Context, userID uint, limit, offset int) ([]models.XPEvent, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create inserts an account with zero XP. XP only moves through the ledger.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.XP = 0
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return classify(fmt.Errorf("create user: %w", err))
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) TopByXP(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Order("xp DESC").
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("top users: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListXPEvents(ctx context.Context, userID uint, limit, offset int) ([]models.XPEvent, error) {
	var events []models.XPEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list xp events: %w", err)
	}
	return events, nil
}
