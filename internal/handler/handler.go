// Package handler exposes the storefront over HTTP: the public order form and
// price table, and the cookie-authenticated admin surface.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/combo-storefront/internal/domain/admin"
	"github.com/xenking/combo-storefront/internal/domain/order"
)

// SessionCookie holds the admin session token.
const SessionCookie = "admin-token"

const maxBodyBytes = 64 << 10

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// CookieSecure marks the session cookie Secure. Enable behind TLS.
	CookieSecure bool
	// Location is the shop's timezone for the "today" dashboard count.
	// Nil means UTC.
	Location *time.Location
}

// Handler serves the storefront API, delegating to the order and admin
// services.
type Handler struct {
	orders *order.Service
	admins *admin.Service

	cookieSecure bool
	location     *time.Location
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, orders *order.Service, admins *admin.Service) *Handler {
	return &Handler{
		orders:       orders,
		admins:       admins,
		cookieSecure: cfg.CookieSecure,
		location:     cfg.Location,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /pricing", h.Pricing)
	mux.HandleFunc("GET /pricing/quote", h.Quote)

	mux.HandleFunc("POST /orders", h.PlaceOrder)
	mux.Handle("GET /orders", h.RequireAdmin(h.ListOrders))
	mux.Handle("GET /orders/{id}", h.RequireAdmin(h.GetOrder))
	mux.Handle("PATCH /orders/{id}", h.RequireAdmin(h.UpdateOrderStatus))
	mux.Handle("DELETE /orders/{id}", h.RequireAdmin(h.DeleteOrder))

	mux.HandleFunc("POST /admin/login", h.Login)
	mux.HandleFunc("POST /admin/logout", h.Logout)
	mux.Handle("GET /admin/session", h.RequireAdmin(h.Session))
	mux.Handle("GET /admin/stats", h.RequireAdmin(h.Stats))
}

var errMalformedBody = errors.New("malformed JSON body")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errMalformedBody, err.Error())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.Wrap(errMalformedBody, "trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type successResponse struct {
	Success bool `json:"success"`
}
