package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xenking/combo-storefront/internal/domain/order"
	"github.com/xenking/combo-storefront/pkg/httpmiddleware"
)

// List paging limits.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type placeOrderRequest struct {
	Name     string   `json:"name"`
	Mobile   string   `json:"mobile"`
	Address  string   `json:"address"`
	Product  []string `json:"product"`
	Size     []string `json:"size"`
	Quantity int      `json:"quantity"`
	Combo    string   `json:"combo"`
	Location string   `json:"location"`
	EventID  string   `json:"eventId"`
	PageURL  string   `json:"pageUrl"`
}

type placeOrderResponse struct {
	OrderID string  `json:"orderId"`
	Total   float64 `json:"total"`
}

type orderResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Mobile         string    `json:"mobile"`
	Address        string    `json:"address"`
	Products       []string  `json:"products"`
	Sizes          []string  `json:"sizes"`
	Quantity       int       `json:"quantity"`
	Combo          string    `json:"combo"`
	Location       string    `json:"location"`
	Price          float64   `json:"price"`
	DeliveryCharge float64   `json:"deliveryCharge"`
	Total          float64   `json:"total"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		Name:           o.Name,
		Mobile:         o.Mobile,
		Address:        o.Address,
		Products:       o.Products,
		Sizes:          o.Sizes,
		Quantity:       o.Quantity,
		Combo:          string(o.Combo),
		Location:       string(o.Location),
		Price:          o.Price.InexactFloat64(),
		DeliveryCharge: o.DeliveryCharge.InexactFloat64(),
		Total:          o.Total.InexactFloat64(),
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

type paginationResponse struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type listOrdersResponse struct {
	Orders     []orderResponse    `json:"orders"`
	Pagination paginationResponse `json:"pagination"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// PlaceOrder handles POST /orders. The server recomputes the price; any
// client-side total is ignored.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.Draft{
		Name:      req.Name,
		Mobile:    req.Mobile,
		Address:   req.Address,
		Products:  req.Product,
		Sizes:     req.Size,
		Quantity:  req.Quantity,
		Combo:     req.Combo,
		Location:  req.Location,
		EventID:   req.EventID,
		PageURL:   req.PageURL,
		ClientIP:  httpmiddleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeOrderResponse{
		OrderID: o.ID,
		Total:   o.Total.InexactFloat64(),
	})
}

// ListOrders handles GET /orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f order.Filter
	if s := q.Get("status"); s != "" && s != "all" {
		st, err := order.ParseStatus(s)
		if err != nil {
			writeError(w, r, fieldError("status", "unknown status"))
			return
		}
		f.Status = st
	}
	f.Search = strings.TrimSpace(q.Get("search"))

	page := order.Page{
		Number: queryInt(q.Get("page"), 1),
		Limit:  min(queryInt(q.Get("limit"), DefaultPageLimit), MaxPageLimit),
	}

	orders, total, err := h.orders.List(r.Context(), f, page)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := listOrdersResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Pagination: paginationResponse{
			Total:      total,
			Page:       page.Number,
			Limit:      page.Limit,
			TotalPages: page.TotalPages(total),
		},
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// queryInt parses a positive integer, falling back to def.
func queryInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// GetOrder handles GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// UpdateOrderStatus handles PATCH /orders/{id}.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// DeleteOrder handles DELETE /orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
