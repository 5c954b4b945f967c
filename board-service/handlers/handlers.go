package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	Boards      store.BoardStore
	Lists       store.ListStore
	Cards       store.CardStore
	JWTSecret   []byte
	RateLimiter *RateLimiter
}

// Routes builds the REST API. Every route requires a bearer token.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/boards", h.AuthMiddleware(h.listBoards)).Methods(http.MethodGet)
	r.HandleFunc("/boards", h.AuthMiddleware(h.createBoard)).Methods(http.MethodPost)
	r.HandleFunc("/boards/{id}", h.AuthMiddleware(h.getBoard)).Methods(http.MethodGet)
	r.HandleFunc("/boards/{id}", h.AuthMiddleware(h.updateBoard)).Methods(http.MethodPut)
	r.HandleFunc("/boards/{id}", h.AuthMiddleware(h.deleteBoard)).Methods(http.MethodDelete)

	r.HandleFunc("/lists", h.AuthMiddleware(h.selectLists)).Methods(http.MethodGet)
	r.HandleFunc("/lists", h.AuthMiddleware(h.createList)).Methods(http.MethodPost)
	r.HandleFunc("/lists/{id}", h.AuthMiddleware(h.updateList)).Methods(http.MethodPatch)
	r.HandleFunc("/lists", h.AuthMiddleware(h.deleteLists)).Methods(http.MethodDelete)

	r.HandleFunc("/cards", h.AuthMiddleware(h.selectCards)).Methods(http.MethodGet)
	r.HandleFunc("/cards", h.AuthMiddleware(h.createCard)).Methods(http.MethodPost)
	r.HandleFunc("/cards/{id}", h.AuthMiddleware(h.updateCard)).Methods(http.MethodPatch)
	r.HandleFunc("/cards", h.AuthMiddleware(h.deleteCards)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SendError(w, "Not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	return h.cors(h.rateLimit(r))
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if rl.attempts[ip] >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(rl.window)
		rl.mutex.Lock()
		rl.attempts = make(map[string]int)
		rl.mutex.Unlock()
	}
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP(r)) {
			log.Printf("Rate limit exceeded for IP: %s", clientIP(r))
			shared.SendError(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
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

// checkOrigin allows every origin when ALLOWED_ORIGINS is empty, otherwise
// only the comma separated origins it lists.
func checkOrigin(r *http.Request) bool {
	allowed := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	if allowed == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !checkOrigin(r) {
				shared.SendError(w, "Origin not allowed", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}

// decodeJSON checks the content type, limits the body to 1MB and decodes it
// into v. It writes the error response itself and reports success.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func userFrom(r *http.Request) (uuid.UUID, bool) {
	raw, _ := r.Context().Value(shared.UserIDKey).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

// queryFilter reads exactly one of keys from the query string.
func queryFilter(r *http.Request, keys ...store.Key) (store.Filter, error) {
	var (
		f     store.Filter
		found int
	)
	q := r.URL.Query()
	for _, k := range keys {
		raw := q.Get(string(k))
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return store.Filter{}, errors.New("invalid " + string(k))
		}
		f = store.Filter{Key: k, Value: id}
		found++
	}
	if found != 1 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = string(k)
		}
		return store.Filter{}, errors.New("exactly one of " + strings.Join(names, ", ") + " is required")
	}
	return f, nil
}

// sendStoreError maps a persistence failure to a status code.
func sendStoreError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		shared.SendError(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, store.ErrUnsupportedFilter), errors.Is(err, store.ErrEmptyPatch):
		shared.SendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		shared.SendError(w, "Request timed out", http.StatusGatewayTimeout)
	default:
		log.Printf("Store error: %v", err)
		shared.SendError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func sendValidationError(w http.ResponseWriter, err error) {
	shared.SendError(w, strings.TrimPrefix(err.Error(), shared.ErrValidation.Error()+": "), http.StatusBadRequest)
}

// ownedBoard loads a board and checks that user owns it. On failure the
// response has been written.
func (h *Handler) ownedBoard(ctx context.Context, w http.ResponseWriter, user, id uuid.UUID) (models.Board, bool) {
	boards, err := h.Boards.SelectBoards(ctx, store.ID(id))
	if err != nil {
		sendStoreError(w, "Board", err)
		return models.Board{}, false
	}
	if len(boards) == 0 {
		shared.SendError(w, "Board not found", http.StatusNotFound)
		return models.Board{}, false
	}
	if boards[0].UserID != user {
		shared.SendError(w, "Forbidden", http.StatusForbidden)
		return models.Board{}, false
	}
	return boards[0], true
}

func (h *Handler) ownedList(ctx context.Context, w http.ResponseWriter, user, id uuid.UUID) (models.List, bool) {
	lists, err := h.Lists.SelectLists(ctx, store.ID(id))
	if err != nil {
		sendStoreError(w, "List", err)
		return models.List{}, false
	}
	if len(lists) == 0 {
		shared.SendError(w, "List not found", http.StatusNotFound)
		return models.List{}, false
	}
	if _, ok := h.ownedBoard(ctx, w, user, lists[0].BoardID); !ok {
		return models.List{}, false
	}
	return lists[0], true
}

func (h *Handler) ownedCard(ctx context.Context, w http.ResponseWriter, user, id uuid.UUID) (models.Card, bool) {
	cards, err := h.Cards.SelectCards(ctx, store.ID(id))
	if err != nil {
		sendStoreError(w, "Card", err)
		return models.Card{}, false
	}
	if len(cards) == 0 {
		shared.SendError(w, "Card not found", http.StatusNotFound)
		return models.Card{}, false
	}
	if _, ok := h.ownedBoard(ctx, w, user, cards[0].BoardID); !ok {
		return models.Card{}, false
	}
	return cards[0], true
}

// authorize checks ownership of whatever f points at inside collection c.
func (h *Handler) authorize(ctx context.Context, w http.ResponseWriter, user uuid.UUID, c store.Collection, f store.Filter) bool {
	switch {
	case f.Key == store.ByBoard:
		_, ok := h.ownedBoard(ctx, w, user, f.Value)
		return ok
	case f.Key == store.ByList, c == store.Lists && f.Key == store.ByID:
		_, ok := h.ownedList(ctx, w, user, f.Value)
		return ok
	case c == store.Cards && f.Key == store.ByID:
		_, ok := h.ownedCard(ctx, w, user, f.Value)
		return ok
	}
	shared.SendError(w, "Unsupported filter", http.StatusBadRequest)
	return false
}

type affectedResponse struct {
	Affected int64 `json:"affected"`
}
