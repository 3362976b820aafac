package handlers

import (
	"splitapp-backend/services"
)

var (
	balances    *services.BalanceService
	invalidator *services.BalanceInvalidator
	notifier    *services.NotificationService
)

// Setup injects the shared services the handlers depend on. Called once from
// main before routes are registered.
func Setup(b *services.BalanceService, inv *services.BalanceInvalidator, n *services.NotificationService) {
	balances = b
	invalidator = inv
	notifier = n
}
