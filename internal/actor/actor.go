// Package actor переносит данные инициатора запроса через context.Context.
package actor

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	userIDKey        contextKey = "userID"
	correlationIDKey contextKey = "correlationID"
)

// WithUserID возвращает контекст с идентификатором текущего пользователя.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID извлекает идентификатор пользователя из контекста.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// ChangedBy возвращает инициатора изменения для журнала статусов; пусто для фоновых задач.
func ChangedBy(ctx context.Context) uuid.NullUUID {
	id, ok := UserID(ctx)
	return uuid.NullUUID{UUID: id, Valid: ok}
}

// WithCorrelationID возвращает контекст с идентификатором корреляции.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID извлекает идентификатор корреляции из контекста.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
