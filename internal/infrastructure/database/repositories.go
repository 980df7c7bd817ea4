package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nutribox/payment-service/internal/adapter/repository"
	domainRepo "github.com/nutribox/payment-service/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Subscription domainRepo.SubscriptionRepository
	Plan         domainRepo.PlanRepository
	Charge       domainRepo.ChargeRepository
	Notification domainRepo.NotificationRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Subscription: repository.NewSubscriptionRepository(db, logger),
		Plan:         repository.NewPlanRepository(db, logger),
		Charge:       repository.NewChargeRepository(db, logger),
		Notification: repository.NewNotificationRepository(db, logger),
	}
}
