// Package bookings is the demo domain surface behind the governance
// pipeline. It serves the dashboard's booking listings and exercises
// identity-scoped caching and admin invalidation end to end.
package bookings

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zozz7777/Clutchplatform-sub018/internal/cache"
	"github.com/Zozz7777/Clutchplatform-sub018/internal/server"
)

// Booking is one service appointment as rendered by the dashboards.
type Booking struct {
	ID        string    `json:"id"`
	Customer  string    `json:"customer"`
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler serves booking reads and writes. Writes invalidate every cached
// booking listing regardless of which identity it was cached for.
type Handler struct {
	cache *cache.Cache

	mu       sync.RWMutex
	bookings []Booking
}

func NewHandler(c *cache.Cache) *Handler {
	return &Handler{
		cache: c,
		bookings: []Booking{
			{ID: uuid.New().String(), Customer: "Ahmed Hassan", Service: "oil_change", Status: "confirmed", CreatedAt: time.Now().Add(-48 * time.Hour)},
			{ID: uuid.New().String(), Customer: "Sara Mohamed", Service: "brake_inspection", Status: "pending", CreatedAt: time.Now().Add(-24 * time.Hour)},
		},
	}
}

// List responds with all bookings. Sits behind the cache middleware, so
// repeated reads within the route TTL are served from memory.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	server.WriteJSON(w, http.StatusOK, map[string]any{"bookings": h.bookings})
}

type createRequest struct {
	Customer string `json:"customer"`
	Service  string `json:"service"`
}

// Create appends a booking and invalidates cached listings so the next
// read observes it.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.WriteValidation(w, "invalid request body", nil)
		return
	}

	var fieldErrors []server.FieldError
	if req.Customer == "" {
		fieldErrors = append(fieldErrors, server.FieldError{Field: "customer", Message: "customer is required"})
	}
	if req.Service == "" {
		fieldErrors = append(fieldErrors, server.FieldError{Field: "service", Message: "service is required"})
	}
	if len(fieldErrors) > 0 {
		server.WriteValidation(w, "validation failed", fieldErrors)
		return
	}

	b := Booking{
		ID:        uuid.New().String(),
		Customer:  req.Customer,
		Service:   req.Service,
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.bookings = append(h.bookings, b)
	h.mu.Unlock()

	if _, err := h.cache.Invalidate(`^GET /api/v1/bookings`); err != nil {
		server.AddError(r.Context(), err)
	}

	server.WriteJSON(w, http.StatusCreated, b)
}
