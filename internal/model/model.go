// Package model содержит доменные сущности сервиса флеш-распродаж.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product описывает товар каталога и объём его физического склада.
type Product struct {
	ID                 uuid.UUID
	Name               string
	Description        string
	TotalPhysicalStock int
	BasePrice          decimal.Decimal
	ReservedCount      int
	CreatedAt          time.Time
}

// Available возвращает количество единиц товара, ещё не распределённых по распродажам.
func (p *Product) Available() int {
	return p.TotalPhysicalStock - p.ReservedCount
}

// SaleStatus описывает стадию жизненного цикла распродажи.
type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "DRAFT"
	SaleStatusActive    SaleStatus = "ACTIVE"
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// FlashSale описывает ограниченную по времени распродажу.
type FlashSale struct {
	ID        uuid.UUID
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Status    SaleStatus
	Items     []FlashSaleItem
	CreatedAt time.Time
}

// Open сообщает, что распродажа активна и момент now попадает в интервал [StartTime, EndTime).
func (s *FlashSale) Open(now time.Time) bool {
	return s.Status == SaleStatusActive && !now.Before(s.StartTime) && now.Before(s.EndTime)
}

// FlashSaleItem описывает квоту товара, выделенную под конкретную распродажу.
// Поля Sale* заполняются только при явной выборке вместе с распродажей.
type FlashSaleItem struct {
	ID             uuid.UUID
	FlashSaleID    uuid.UUID
	ProductID      uuid.UUID
	AllocatedStock int
	SoldCount      int
	SalePrice      decimal.Decimal

	SaleStatus    SaleStatus
	SaleStartTime time.Time
	SaleEndTime   time.Time
}

// Remaining возвращает число ещё не проданных единиц квоты.
func (i *FlashSaleItem) Remaining() int {
	return i.AllocatedStock - i.SoldCount
}

// OnSale сообщает, что позицию можно купить в момент now.
func (i *FlashSaleItem) OnSale(now time.Time) bool {
	sale := FlashSale{Status: i.SaleStatus, StartTime: i.SaleStartTime, EndTime: i.SaleEndTime}
	return sale.Open(now)
}

// Order описывает заказ покупателя на позицию распродажи.
type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	FlashSaleItemID uuid.UUID
	Quantity        int
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderStatusHistory описывает неизменяемую запись о смене статуса заказа.
// FromStatus пуст для записи о создании заказа, ChangedBy пуст для фоновых переходов.
type OrderStatusHistory struct {
	ID         int64
	OrderID    uuid.UUID
	FromStatus OrderStatus
	ToStatus   OrderStatus
	ChangedAt  time.Time
	ChangedBy  uuid.NullUUID
}

// SaleStats содержит агрегированные показатели распродажи для административной консоли.
type SaleStats struct {
	SaleID         uuid.UUID
	OrdersByStatus map[OrderStatus]int
	UnitsSold      int
	UnitsAllocated int
	Revenue        decimal.Decimal
}
