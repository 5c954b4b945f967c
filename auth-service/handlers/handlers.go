package handlers

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chepyr/go-kanban/auth-service/db"
	"github.com/chepyr/go-kanban/shared"
	"github.com/gorilla/mux"
)

type Handler struct {
	UserRepo    db.UserRepositoryInterface
	RateLimiter *RateLimiter
}

func (handler *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/register", handler.Register)
	r.HandleFunc("/login", handler.Login)
	r.HandleFunc("/me", handler.Me)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SendError(w, "Not found", http.StatusNotFound)
	})
	return r
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
}

// reset the attempts map every window duration
func (rateLimiter *RateLimiter) cleanup() {
	for range time.Tick(rateLimiter.window) {
		rateLimiter.mutex.Lock()
		rateLimiter.attempts = make(map[string]int)
		rateLimiter.mutex.Unlock()
	}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rateLimiter := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
	}
	go rateLimiter.cleanup()
	return rateLimiter
}

func (rateLimiter *RateLimiter) Allow(ip string) bool {
	rateLimiter.mutex.Lock()
	defer rateLimiter.mutex.Unlock()

	if rateLimiter.attempts[ip] >= rateLimiter.limit {
		return false
	}
	rateLimiter.attempts[ip]++
	return true
}

func (handler *Handler) allow(request *http.Request) bool {
	return handler.RateLimiter == nil || handler.RateLimiter.Allow(clientIP(request))
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
