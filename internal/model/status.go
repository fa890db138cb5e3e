package model

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
	OrderStatusDispatched OrderStatus = "DISPATCHED"
)

// OrderStatuses перечисляет все статусы заказа.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusFailed,
	OrderStatusRefunded,
	OrderStatusDispatched,
}

// transitions задаёт допустимые переходы: по целевому статусу хранится требуемый исходный.
var transitions = map[OrderStatus]OrderStatus{
	OrderStatusPaid:       OrderStatusPending,
	OrderStatusFailed:     OrderStatusPending,
	OrderStatusDispatched: OrderStatusPaid,
	OrderStatusRefunded:   OrderStatusPaid,
}

// Valid сообщает, является ли значение известным статусом заказа.
func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// CanTransition проверяет, разрешён ли переход from -> to.
func CanTransition(from, to OrderStatus) bool {
	required, ok := transitions[to]
	return ok && required == from
}

// RequiredStatus возвращает статус, из которого допускается переход в to.
// Для статусов без входящих переходов возвращается пустая строка.
func RequiredStatus(to OrderStatus) OrderStatus {
	return transitions[to]
}
