package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCalc(t *testing.T) *Calculator {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestPrice_FixedTiers(t *testing.T) {
	c := newCalc(t)

	tests := []struct {
		tier Tier
		want int64
	}{
		{TierTwo, 660},
		{TierThree, 999},
		{TierFour, 1299},
		{TierFive, 1599},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, c.Price(tt.tier, 0))
			// customQty is ignored for fixed tiers.
			assert.Equal(t, tt.want, c.Price(tt.tier, 42))
		})
	}
}

func TestPrice_Custom(t *testing.T) {
	c := newCalc(t)

	tests := []struct {
		name string
		qty  int
		want int64
	}{
		{"absent", 0, 0},
		{"negative", -3, 0},
		{"one", 1, 0},
		{"two falls back to table", 2, 660},
		{"five falls back to table", 5, 1599},
		{"six per unit", 6, 1848},
		{"eight per unit", 8, 2464},
		{"large", 100, 30800},
		{"at max", 1000, 308000},
		{"above max", 1001, 0},
		{"would overflow", 59892026213342701, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Price(TierCustom, tt.qty))
		})
	}
}

func TestPrice_UnknownTier(t *testing.T) {
	c := newCalc(t)
	assert.Zero(t, c.Price(Tier("7"), 7))
	assert.Zero(t, c.ActualQuantity(Tier("bogus"), 3))
}

func TestActualQuantity(t *testing.T) {
	c := newCalc(t)

	assert.Equal(t, 2, c.ActualQuantity(TierTwo, 9))
	assert.Equal(t, 5, c.ActualQuantity(TierFive, 0))
	assert.Equal(t, 7, c.ActualQuantity(TierCustom, 7))
	assert.Equal(t, 0, c.ActualQuantity(TierCustom, 0))
}

func TestDeliveryCharge(t *testing.T) {
	c := newCalc(t)

	tests := []struct {
		name string
		qty  int
		loc  Location
		want int64
	}{
		{"near small", 2, LocationNear, 80},
		{"far small", 2, LocationFar, 150},
		{"near zero", 0, LocationNear, 80},
		{"near threshold", 3, LocationNear, 0},
		{"far threshold", 3, LocationFar, 0},
		{"far large", 10, LocationFar, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.DeliveryCharge(tt.qty, tt.loc))
		})
	}
}

// The 3-piece combo ships free to the far zone: the free-delivery threshold
// applies to every tier, so the total is 999 and not 999+150.
func TestQuote_ThreeComboFarShipsFree(t *testing.T) {
	c := newCalc(t)

	q := c.Quote(TierThree, 0, LocationFar)
	assert.Equal(t, int64(999), q.Price)
	assert.Equal(t, 3, q.Quantity)
	assert.Equal(t, int64(0), q.DeliveryCharge)
	assert.Equal(t, int64(999), q.Total)
	assert.True(t, q.Ready())
}

func TestQuote_TwoComboFar(t *testing.T) {
	c := newCalc(t)

	q := c.Quote(TierTwo, 0, LocationFar)
	assert.Equal(t, int64(660), q.Price)
	assert.Equal(t, int64(150), q.DeliveryCharge)
	assert.Equal(t, int64(810), q.Total)
	assert.Equal(t, q.Total, c.Total(TierTwo, 0, LocationFar))
}

func TestQuote_CustomEightNear(t *testing.T) {
	c := newCalc(t)

	q := c.Quote(TierCustom, 8, LocationNear)
	assert.Equal(t, int64(2464), q.Price)
	assert.Equal(t, 8, q.Quantity)
	assert.Equal(t, int64(0), q.DeliveryCharge)
	assert.Equal(t, int64(2464), q.Total)
}

func TestQuote_AboveMaxQuantity(t *testing.T) {
	c := newCalc(t)

	assert.Equal(t, 1000, c.MaxQuantity())
	assert.True(t, c.Quote(TierCustom, c.MaxQuantity(), LocationNear).Ready())

	q := c.Quote(TierCustom, c.MaxQuantity()+1, LocationNear)
	assert.False(t, q.Ready())
	assert.Zero(t, q.Price)
}

func TestQuote_Incomplete(t *testing.T) {
	c := newCalc(t)

	q := c.Quote(TierCustom, 1, LocationNear)
	assert.False(t, q.Ready())
	assert.Equal(t, int64(0), q.Price)
	// Delivery is still charged on an incomplete selection.
	assert.Equal(t, int64(80), q.Total)
}

func TestQuote_Deterministic(t *testing.T) {
	c := newCalc(t)

	first := c.Quote(TierCustom, 6, LocationFar)
	for range 10 {
		assert.Equal(t, first, c.Quote(TierCustom, 6, LocationFar))
	}
}

func TestTiers(t *testing.T) {
	c := newCalc(t)

	tiers := c.Tiers()
	require.Len(t, tiers, 5)

	assert.Equal(t, TierTwo, tiers[0].Tier)
	assert.Equal(t, 2, tiers[0].Units)
	require.NotNil(t, tiers[0].Price)
	assert.Equal(t, int64(660), *tiers[0].Price)

	assert.Equal(t, TierFive, tiers[3].Tier)
	assert.Equal(t, int64(1599), *tiers[3].Price)

	assert.Equal(t, TierCustom, tiers[4].Tier)
	assert.Equal(t, CustomMinUnits, tiers[4].Units)
	assert.Nil(t, tiers[4].Price)
}

func TestNew_CopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	c, err := New(cfg)
	require.NoError(t, err)

	cfg.FixedPrices[2] = 1
	assert.Equal(t, int64(660), c.Price(TierTwo, 0))

	got := c.Config()
	got.FixedPrices[3] = 1
	assert.Equal(t, int64(999), c.Price(TierThree, 0))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing tier", func(c *Config) { delete(c.FixedPrices, 4) }},
		{"zero tier price", func(c *Config) { c.FixedPrices[3] = 0 }},
		{"zero per unit", func(c *Config) { c.PerUnitPrice = 0 }},
		{"zero threshold", func(c *Config) { c.FreeDeliveryMinUnits = 0 }},
		{"negative fee", func(c *Config) { c.NearFee = -1 }},
		{"near not cheaper", func(c *Config) { c.NearFee = c.FarFee }},
		{"zero max quantity", func(c *Config) { c.MaxQuantity = 0 }},
		{"max below custom", func(c *Config) { c.MaxQuantity = CustomMinUnits - 1 }},
		{"max overflows", func(c *Config) { c.MaxQuantity = math.MaxInt64 / 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.Error(t, err)
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNew(Config{}) })
}

func TestTierForQuantity(t *testing.T) {
	assert.Equal(t, TierTwo, TierForQuantity(2))
	assert.Equal(t, TierFive, TierForQuantity(5))
	assert.Equal(t, TierCustom, TierForQuantity(6))
	assert.Equal(t, TierCustom, TierForQuantity(1))
}

func TestParseTier(t *testing.T) {
	for _, s := range []string{"2", "3", "4", "5", "custom"} {
		got, err := ParseTier(s)
		require.NoError(t, err)
		assert.Equal(t, Tier(s), got)
	}

	_, err := ParseTier("6")
	require.ErrorIs(t, err, ErrUnknownTier)
	_, err = ParseTier("")
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestParseLocation(t *testing.T) {
	got, err := ParseLocation("near")
	require.NoError(t, err)
	assert.Equal(t, LocationNear, got)

	got, err = ParseLocation("far")
	require.NoError(t, err)
	assert.Equal(t, LocationFar, got)

	_, err = ParseLocation("mars")
	require.ErrorIs(t, err, ErrUnknownLocation)
}
