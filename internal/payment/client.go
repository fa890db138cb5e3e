// Package payment предоставляет клиент платёжного шлюза и его симулятор.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Result описывает исход списания. Отказ шлюза считается штатным исходом, а не ошибкой.
type Result string

const (
	Approved Result = "APPROVED"
	Declined Result = "DECLINED"
)

// Gateway описывает платёжный шлюз.
type Gateway interface {
	Charge(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (Result, error)
}

// RateLimitError возвращается, когда шлюз просит повторить запрос позже.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("payment gateway rate limited, retry after %s", e.RetryAfter)
}

// ErrNotConfigured возвращается клиентом без адреса шлюза.
var ErrNotConfigured = errors.New("payment gateway client not configured")

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type chargeRequest struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type chargeResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// NewClient создаёт HTTP-клиент для обращения к платёжному шлюзу по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Charge списывает amount за заказ orderID.
func (c *Client) Charge(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (Result, error) {
	if c == nil || c.baseURL == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chargeRequest{OrderID: orderID.String(), Amount: amount})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/payments", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", orderID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusPaymentRequired:
		return Declined, nil
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return "", &RateLimitError{RetryAfter: retryAfter}
	default:
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	switch Result(result.Status) {
	case Approved, Declined:
		return Result(result.Status), nil
	default:
		return "", fmt.Errorf("unexpected payment status %q", result.Status)
	}
}

// Simulator одобряет платёж с заданной вероятностью. Идентификатор заказа служит
// ключом идемпотентности: повторное списание возвращает исход первого.
type Simulator struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	successRate float64
	charged     map[uuid.UUID]Result
}

// NewSimulator создаёт симулятор шлюза; successRate лежит в [0, 1].
func NewSimulator(successRate float64, seed uint64) *Simulator {
	return &Simulator{
		rnd:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		successRate: successRate,
		charged:     make(map[uuid.UUID]Result),
	}
}

// Charge имитирует списание.
func (s *Simulator) Charge(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (Result, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if res, ok := s.charged[orderID]; ok {
		return res, nil
	}

	res := Declined
	if s.rnd.Float64() < s.successRate {
		res = Approved
	}
	s.charged[orderID] = res
	return res, nil
}
