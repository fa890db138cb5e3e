package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrorKind классифицирует доменные ошибки для транспорта и обработчиков очередей.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindInsufficientStock
	KindInvalidTransition
	KindDuplicate
	KindValidation
	KindSaleNotActive
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindDuplicate:
		return "duplicate"
	case KindValidation:
		return "validation"
	case KindSaleNotActive:
		return "sale_not_active"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound возвращается, если сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock возвращается, если квоты позиции не хватает для резерва.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition возвращается при попытке недопустимой смены статуса заказа.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDuplicate возвращается при нарушении ограничения уникальности.
	ErrDuplicate = errors.New("duplicate entity")
	// ErrDuplicateOrder возвращается, если пользователь уже заказал эту позицию.
	ErrDuplicateOrder = fmt.Errorf("order for this user and item already exists: %w", ErrDuplicate)
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrSaleNotActive возвращается, если распродажа не активна или вне своего окна.
	ErrSaleNotActive = errors.New("sale is not active")
	// ErrPaymentInProgress возвращается, если оплату заказа уже выполняет другой обработчик.
	// Ошибка временная: повторная доставка увидит итоговый статус.
	ErrPaymentInProgress = errors.New("payment already in progress")
)

// InsufficientStockError описывает отказ в резервировании.
type InsufficientStockError struct {
	ItemID    uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InvalidTransitionError описывает отклонённую смену статуса заказа.
type InvalidTransitionError struct {
	OrderID  uuid.UUID
	Current  OrderStatus
	Target   OrderStatus
	Required []OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	req := make([]string, 0, len(e.Required))
	for _, s := range e.Required {
		req = append(req, string(s))
	}
	return fmt.Sprintf("invalid status transition for order %s: %s -> %s, requires %s",
		e.OrderID, e.Current, e.Target, strings.Join(req, "|"))
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Validationf создаёт ошибку валидации с сообщением.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// KindOf определяет вид ошибки. Ошибки неизвестного вида считаются инфраструктурными.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrDuplicate):
		return KindDuplicate
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrSaleNotActive):
		return KindSaleNotActive
	default:
		return KindUnknown
	}
}
