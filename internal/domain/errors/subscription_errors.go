package errors

import "errors"

var (
	// ErrSubscriptionNotFound indicates that the specified subscription was not found
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrPlanNotFound indicates that the specified payment plan was not found
	ErrPlanNotFound = errors.New("payment plan not found")

	// ErrMissingPeriodNo indicates that a gateway operation was attempted
	// before the gateway assigned the plan its period number
	ErrMissingPeriodNo = errors.New("subscription has no gateway period number")

	// ErrDuplicateNotification indicates that a notification with the same
	// trade number was already recorded
	ErrDuplicateNotification = errors.New("notification already recorded")
)
