// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
)

// MaxQuantity ограничивает число единиц в одном заказе.
const MaxQuantity = 100

// Quantity проверяет, что количество является положительным целым в допустимых пределах.
func Quantity(q int) error {
	if q <= 0 {
		return model.Validationf("quantity must be positive, got %d", q)
	}
	if q > MaxQuantity {
		return model.Validationf("quantity must not exceed %d, got %d", MaxQuantity, q)
	}
	return nil
}

// Price проверяет, что цена положительна и не содержит долей меньше копейки.
func Price(p decimal.Decimal) error {
	if !p.IsPositive() {
		return model.Validationf("price must be positive, got %s", p)
	}
	if !p.Equal(p.Truncate(2)) {
		return model.Validationf("price must have at most 2 decimal places, got %s", p)
	}
	return nil
}

// SaleWindow проверяет интервал распродажи: начало раньше конца и длительность не меньше minDuration.
func SaleWindow(start, end time.Time, minDuration time.Duration) error {
	if start.IsZero() || end.IsZero() {
		return model.Validationf("sale start and end time are required")
	}
	if !start.Before(end) {
		return model.Validationf("sale start time must be before end time")
	}
	if end.Sub(start) < minDuration {
		return model.Validationf("sale must last at least %s", minDuration)
	}
	return nil
}

// NonEmpty проверяет обязательное строковое поле.
func NonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return model.Validationf("%s is required", field)
	}
	return nil
}

// NonNegative проверяет, что числовое поле не отрицательно.
func NonNegative(field string, v int) error {
	if v < 0 {
		return model.Validationf("%s must not be negative, got %d", field, v)
	}
	return nil
}

// ID разбирает идентификатор в каноническом текстовом виде UUID.
func ID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, model.Validationf("invalid id %q", s)
	}
	if id == uuid.Nil {
		return uuid.Nil, model.Validationf("id must not be nil")
	}
	return id, nil
}
