// Package middleware содержит HTTP middleware для сервиса флеш-распродаж.
package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/twalmsley/FlashSales-sub001/internal/actor"
)

const (
	authCookieName = "auth_token"
	bearerPrefix   = "Bearer "

	// AdminKeyHeader содержит ключ администратора.
	AdminKeyHeader = "X-Admin-Key"
	// ActorHeader необязательно указывает администратора, выполняющего операцию.
	ActorHeader = "X-Actor-ID"
)

// AuthMiddleware проверяет подписанный токен покупателя вида "<uuid>.<hmac>".
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// Пустой секрет заменяется случайным: выданные токены действуют до перезапуска.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет токен из заголовка Authorization или cookie и добавляет
// идентификатор пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		userID, ok := a.parseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(actor.WithUserID(r.Context(), userID)))
	})
}

// Sign выдаёт токен для пользователя userID.
func (a *AuthMiddleware) Sign(userID uuid.UUID) string {
	id := userID.String()
	return id + "." + a.signature(id)
}

func (a *AuthMiddleware) signature(id string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseToken(token string) (uuid.UUID, bool) {
	idStr, signature, found := strings.Cut(token, ".")
	if !found {
		return uuid.Nil, false
	}

	if !hmac.Equal([]byte(signature), []byte(a.signature(idStr))) {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}

	return id, true
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if c, err := r.Cookie(authCookieName); err == nil {
		return c.Value
	}
	return ""
}

// AdminOnly пропускает запросы с верным ключом администратора. Если ключ не задан,
// административные маршруты закрыты. Заголовок X-Actor-ID попадает в журнал статусов.
func AdminOnly(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}

			ctx := r.Context()
			if id, err := uuid.Parse(r.Header.Get(ActorHeader)); err == nil {
				ctx = actor.WithUserID(ctx, id)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
