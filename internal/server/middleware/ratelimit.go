package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/iudanet/gophsync/internal/server/handlers"
)

// ErrCodeRateLimited код ошибки при превышении лимита
const ErrCodeRateLimited = "rate_limited"

// RateLimiter ограничивает число запросов на ключ за окно (fixed window).
// Окно ключа начинается с первого запроса; по истечении окна bucket вытесняется
// из LRU и следующий запрос начинает новое окно с полным лимитом.
type RateLimiter struct {
	buckets *expirable.LRU[string, *bucket]
	rate    int
	mu      sync.Mutex
}

type bucket struct {
	tokens int
}

// NewRateLimiter создает новый rate limiter
// rate - максимальное количество запросов за window
// size - максимальное число отслеживаемых ключей (самые старые вытесняются)
func NewRateLimiter(rate int, window time.Duration, size int) *RateLimiter {
	return &RateLimiter{
		buckets: expirable.NewLRU[string, *bucket](size, nil, window),
		rate:    rate,
	}
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets.Get(key)
	if !ok {
		if rl.rate <= 0 {
			return false
		}
		rl.buckets.Add(key, &bucket{tokens: rl.rate - 1})
		return true
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Tracked returns the number of keys with an open window.
func (rl *RateLimiter) Tracked() int {
	return rl.buckets.Len()
}

// KeyFunc выбирает ключ лимита для запроса
type KeyFunc func(r *http.Request) string

// ByClientIP ключ - IP адрес клиента
func ByClientIP(r *http.Request) string {
	return getClientIP(r)
}

// ByUser ключ - user_id аутентифицированного запроса, иначе IP адрес.
// Должен стоять после AuthMiddleware.
func ByUser(r *http.Request) string {
	if userID, ok := handlers.GetUserID(r.Context()); ok {
		return "user:" + userID
	}
	return getClientIP(r)
}

// RateLimitMiddleware создает middleware для ограничения частоты запросов
func RateLimitMiddleware(limiter *RateLimiter, keyFunc KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)

			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					"key", key,
					"method", r.Method,
					"path", r.URL.Path,
				)
				handlers.SendError(logger, w, ErrCodeRateLimited, "rate limit exceeded, please try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	// Берем первый IP из списка (реальный клиент)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// без порта: новые соединения одного клиента попадают в одно окно
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
