package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/xenking/combo-storefront/internal/domain/pricing"
)

type tierResponse struct {
	Key   string `json:"key"`
	Units int    `json:"units"`
	// Price is null for the custom tier.
	Price *int64 `json:"price"`
}

type deliveryFeesResponse struct {
	Near int64 `json:"near"`
	Far  int64 `json:"far"`
}

type pricingResponse struct {
	Tiers                []tierResponse       `json:"tiers"`
	PerUnitPrice         int64                `json:"perUnitPrice"`
	CustomMinUnits       int                  `json:"customMinUnits"`
	FreeDeliveryMinUnits int                  `json:"freeDeliveryMinUnits"`
	MaxQuantity          int                  `json:"maxQuantity"`
	DeliveryFees         deliveryFeesResponse `json:"deliveryFees"`
}

type quoteResponse struct {
	Combo          string `json:"combo"`
	Location       string `json:"location"`
	Quantity       int    `json:"quantity"`
	Price          int64  `json:"price"`
	DeliveryCharge int64  `json:"deliveryCharge"`
	Total          int64  `json:"total"`
	Ready          bool   `json:"ready"`
}

// Pricing handles GET /pricing. The order form renders its live preview
// from this table so client and server price identically.
func (h *Handler) Pricing(w http.ResponseWriter, _ *http.Request) {
	calc := h.orders.Calculator()
	cfg := calc.Config()

	resp := pricingResponse{
		PerUnitPrice:         cfg.PerUnitPrice,
		CustomMinUnits:       pricing.CustomMinUnits,
		FreeDeliveryMinUnits: cfg.FreeDeliveryMinUnits,
		MaxQuantity:          cfg.MaxQuantity,
		DeliveryFees:         deliveryFeesResponse{Near: cfg.NearFee, Far: cfg.FarFee},
	}
	for _, t := range calc.Tiers() {
		resp.Tiers = append(resp.Tiers, tierResponse{Key: string(t.Tier), Units: t.Units, Price: t.Price})
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, resp)
}

// Quote handles GET /pricing/quote?combo=&quantity=&location=.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	calc := h.orders.Calculator()

	qty := 0
	if s := q.Get("quantity"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > calc.MaxQuantity() {
			writeError(w, r, fieldError("quantity",
				fmt.Sprintf("quantity must be an integer between 0 and %d", calc.MaxQuantity())))
			return
		}
		qty = n
	}

	tier := pricing.TierForQuantity(qty)
	if s := q.Get("combo"); s != "" {
		t, err := pricing.ParseTier(s)
		if err != nil {
			writeError(w, r, fieldError("combo", "unknown combo"))
			return
		}
		tier = t
	}

	loc := pricing.LocationNear
	if s := q.Get("location"); s != "" {
		l, err := pricing.ParseLocation(s)
		if err != nil {
			writeError(w, r, fieldError("location", "location must be near or far"))
			return
		}
		loc = l
	}

	quote := calc.Quote(tier, qty, loc)
	writeJSON(w, http.StatusOK, quoteResponse{
		Combo:          string(quote.Tier),
		Location:       string(quote.Location),
		Quantity:       quote.Quantity,
		Price:          quote.Price,
		DeliveryCharge: quote.DeliveryCharge,
		Total:          quote.Total,
		Ready:          quote.Ready(),
	})
}
