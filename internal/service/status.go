package service

import "dokon-pos/internal/models"

// validNext is the order status transition table. Refund statuses are only
// reachable through the refund flow; partially_refunded re-enters itself as
// further partial refunds land.
var validNext = map[string]map[string]bool{
	models.OrderStatusDraft: {
		models.OrderStatusCompleted: true,
		models.OrderStatusCancelled: true,
	},
	models.OrderStatusCompleted: {
		models.OrderStatusPartiallyRefunded: true,
		models.OrderStatusFullyRefunded:     true,
	},
	models.OrderStatusPartiallyRefunded: {
		models.OrderStatusPartiallyRefunded: true,
		models.OrderStatusFullyRefunded:     true,
	},
	models.OrderStatusCancelled:     {},
	models.OrderStatusFullyRefunded: {},
}

func CanTransition(from, to string) bool {
	return validNext[from][to]
}

// directStatuses are the only targets the status-update operation accepts;
// everything else is an outcome of the refund flow.
var directStatuses = map[string]bool{
	models.OrderStatusCompleted: true,
	models.OrderStatusCancelled: true,
}

func CanSetDirectly(to string) bool {
	return directStatuses[to]
}
