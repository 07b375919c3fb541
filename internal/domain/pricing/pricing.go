// Package pricing computes combo prices and delivery charges.
//
// Every function here is pure: the result depends only on the Config passed
// to New and the call arguments. The storefront client renders its preview
// from the same table (served by GET /pricing), so both sides must agree on
// every input.
package pricing

import (
	"math"
	"slices"
	"strconv"

	"github.com/go-faster/errors"
)

// Tier identifies a combo pricing bucket.
type Tier string

const (
	TierTwo    Tier = "2"
	TierThree  Tier = "3"
	TierFour   Tier = "4"
	TierFive   Tier = "5"
	TierCustom Tier = "custom"
)

// Location is a delivery zone tag.
type Location string

const (
	// LocationNear is the cheaper zone (inside the city).
	LocationNear Location = "near"
	// LocationFar is everything else.
	LocationFar Location = "far"
)

var (
	// ErrUnknownTier is returned by ParseTier for tags outside the tier set.
	ErrUnknownTier = errors.New("unknown combo tier")
	// ErrUnknownLocation is returned by ParseLocation for unknown zones.
	ErrUnknownLocation = errors.New("unknown delivery location")
)

// fixedUnits lists the unit counts that have a fixed combo price.
var fixedUnits = []int{2, 3, 4, 5}

// CustomMinUnits is the smallest quantity priced per unit.
const CustomMinUnits = 6

// Config holds the business parameters of the price table.
type Config struct {
	// FixedPrices maps a unit count (2..5) to the total combo price.
	FixedPrices map[int]int64
	// PerUnitPrice is charged per unit for custom orders of CustomMinUnits or more.
	PerUnitPrice int64
	// FreeDeliveryMinUnits is the quantity from which delivery is free.
	FreeDeliveryMinUnits int
	// MaxQuantity caps a single order. Larger selections are not priced.
	MaxQuantity int
	NearFee     int64
	FarFee      int64
}

// DefaultConfig returns the reference price table.
func DefaultConfig() Config {
	return Config{
		FixedPrices: map[int]int64{
			2: 660,
			3: 999,
			4: 1299,
			5: 1599,
		},
		PerUnitPrice:         308,
		FreeDeliveryMinUnits: 3,
		MaxQuantity:          1000,
		NearFee:              80,
		FarFee:               150,
	}
}

// Validate checks that the table is complete and consistent.
func (c Config) Validate() error {
	for _, units := range fixedUnits {
		p, ok := c.FixedPrices[units]
		if !ok {
			return errors.Errorf("missing fixed price for %d units", units)
		}
		if p <= 0 {
			return errors.Errorf("fixed price for %d units must be positive", units)
		}
	}
	if c.PerUnitPrice <= 0 {
		return errors.New("per-unit price must be positive")
	}
	if c.FreeDeliveryMinUnits < 1 {
		return errors.New("free delivery threshold must be at least 1")
	}
	if c.MaxQuantity < CustomMinUnits {
		return errors.Errorf("max quantity must be at least %d", CustomMinUnits)
	}
	if c.PerUnitPrice > math.MaxInt64/int64(c.MaxQuantity) {
		return errors.Errorf("per-unit price %d overflows at max quantity %d", c.PerUnitPrice, c.MaxQuantity)
	}
	if c.NearFee < 0 || c.FarFee < 0 {
		return errors.New("delivery fees must not be negative")
	}
	if c.NearFee >= c.FarFee {
		return errors.Errorf("near fee %d must be lower than far fee %d", c.NearFee, c.FarFee)
	}
	return nil
}

// TierInfo describes one selectable tier.
type TierInfo struct {
	Tier  Tier
	Units int
	// Price is nil for the custom tier, which is priced per unit.
	Price *int64
}

// Quote is the full price breakdown of a selection.
type Quote struct {
	Tier           Tier
	Location       Location
	Quantity       int
	Price          int64
	DeliveryCharge int64
	Total          int64
}

// Ready reports whether the selection can be submitted. A zero price means
// the selection is incomplete, never a free order.
func (q Quote) Ready() bool {
	return q.Price > 0 && q.Quantity > 0
}

// Calculator evaluates a Config.
type Calculator struct {
	cfg Config
}

// New validates cfg and returns a Calculator over a private copy of it.
func New(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pricing config")
	}
	prices := make(map[int]int64, len(cfg.FixedPrices))
	for k, v := range cfg.FixedPrices {
		prices[k] = v
	}
	cfg.FixedPrices = prices
	return &Calculator{cfg: cfg}, nil
}

// MustNew is like New but panics on an invalid config. Intended for tests and
// package-level defaults.
func MustNew(cfg Config) *Calculator {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Config returns a copy of the underlying table.
func (c *Calculator) Config() Config {
	cfg := c.cfg
	cfg.FixedPrices = make(map[int]int64, len(c.cfg.FixedPrices))
	for k, v := range c.cfg.FixedPrices {
		cfg.FixedPrices[k] = v
	}
	return cfg
}

// MaxQuantity returns the largest quantity a single order may carry.
func (c *Calculator) MaxQuantity() int {
	return c.cfg.MaxQuantity
}

// Price returns the product price for a tier. customQty is only consulted for
// the custom tier; quantities above MaxQuantity are not priced.
func (c *Calculator) Price(t Tier, customQty int) int64 {
	if units, ok := t.fixedUnits(); ok {
		return c.cfg.FixedPrices[units]
	}
	if t != TierCustom {
		return 0
	}

	switch {
	case customQty < fixedUnits[0]:
		return 0
	case customQty < CustomMinUnits:
		// Small custom quantities fall back to the combo table.
		return c.cfg.FixedPrices[customQty]
	case customQty > c.cfg.MaxQuantity:
		return 0
	default:
		return int64(customQty) * c.cfg.PerUnitPrice
	}
}

// ActualQuantity returns the number of units a selection stands for.
func (c *Calculator) ActualQuantity(t Tier, customQty int) int {
	if units, ok := t.fixedUnits(); ok {
		return units
	}
	if t == TierCustom && customQty > 0 {
		return customQty
	}
	return 0
}

// DeliveryCharge returns the delivery fee. Callers must reject unknown
// locations first; anything other than LocationNear is charged the far fee.
func (c *Calculator) DeliveryCharge(quantity int, loc Location) int64 {
	if quantity >= c.cfg.FreeDeliveryMinUnits {
		return 0
	}
	if loc == LocationNear {
		return c.cfg.NearFee
	}
	return c.cfg.FarFee
}

// Total is Price plus the delivery charge for the actual quantity.
func (c *Calculator) Total(t Tier, customQty int, loc Location) int64 {
	return c.Quote(t, customQty, loc).Total
}

// Quote returns the full breakdown for a selection.
func (c *Calculator) Quote(t Tier, customQty int, loc Location) Quote {
	qty := c.ActualQuantity(t, customQty)
	price := c.Price(t, customQty)
	delivery := c.DeliveryCharge(qty, loc)
	return Quote{
		Tier:           t,
		Location:       loc,
		Quantity:       qty,
		Price:          price,
		DeliveryCharge: delivery,
		Total:          price + delivery,
	}
}

// Tiers lists the selectable tiers in display order.
func (c *Calculator) Tiers() []TierInfo {
	out := make([]TierInfo, 0, len(fixedUnits)+1)
	for _, units := range fixedUnits {
		p := c.cfg.FixedPrices[units]
		out = append(out, TierInfo{
			Tier:  Tier(strconv.Itoa(units)),
			Units: units,
			Price: &p,
		})
	}
	return append(out, TierInfo{Tier: TierCustom, Units: CustomMinUnits})
}

// TierForQuantity maps a bare unit count to the tier that prices it.
func TierForQuantity(q int) Tier {
	if slices.Contains(fixedUnits, q) {
		return Tier(strconv.Itoa(q))
	}
	return TierCustom
}

// ParseTier validates a tier tag.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := t.fixedUnits(); ok || t == TierCustom {
		return t, nil
	}
	return "", errors.Wrapf(ErrUnknownTier, "%q", s)
}

// ParseLocation validates a location tag.
func ParseLocation(s string) (Location, error) {
	switch l := Location(s); l {
	case LocationNear, LocationFar:
		return l, nil
	default:
		return "", errors.Wrapf(ErrUnknownLocation, "%q", s)
	}
}

func (t Tier) fixedUnits() (int, bool) {
	switch t {
	case TierTwo:
		return 2, true
	case TierThree:
		return 3, true
	case TierFour:
		return 4, true
	case TierFive:
		return 5, true
	default:
		return 0, false
	}
}
