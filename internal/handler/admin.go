package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/combo-storefront/internal/domain/admin"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type sessionResponse struct {
	AdminID   string    `json:"adminId"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type statsResponse struct {
	TotalOrders     int `json:"totalOrders"`
	PendingOrders   int `json:"pendingOrders"`
	ConfirmedOrders int `json:"confirmedOrders"`
	DeliveredOrders int `json:"deliveredOrders"`
	CancelledOrders int `json:"cancelledOrders"`
	TodayOrders     int `json:"todayOrders"`
}

// RequireAdmin rejects requests without a valid session cookie before next
// runs. The verified session is stored in the request context.
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil {
			writeError(w, r, admin.ErrUnauthenticated)
			return
		}
		sess, err := h.admins.Verify(c.Value)
		if err != nil {
			writeError(w, r, admin.ErrUnauthenticated)
			return
		}
		ctx := admin.WithSession(r.Context(), sess)
		ctx = zctx.With(ctx, zap.String("admin", sess.Username))
		next(w, r.WithContext(ctx))
	})
}

func (h *Handler) sessionCookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login handles POST /admin/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, r, admin.ErrInvalidCredentials)
		return
	}

	token, sess, err := h.admins.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, int(h.admins.TTL().Seconds()), sess.ExpiresAt))
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Username: sess.Username})
}

// Logout handles POST /admin/logout. It succeeds with or without a session.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1, time.Unix(0, 0)))
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Session handles GET /admin/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := admin.SessionFrom(r.Context())
	if !ok {
		writeError(w, r, admin.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AdminID:   sess.AdminID,
		Username:  sess.Username,
		ExpiresAt: sess.ExpiresAt,
	})
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.orders.Stats(r.Context(), h.location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalOrders:     st.Total,
		PendingOrders:   st.Pending,
		ConfirmedOrders: st.Confirmed,
		DeliveredOrders: st.Delivered,
		CancelledOrders: st.Cancelled,
		TodayOrders:     st.Today,
	})
}
