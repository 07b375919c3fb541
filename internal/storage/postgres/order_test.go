package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xenking/combo-storefront/internal/domain/order"
)

func TestBuildStreamFilter(t *testing.T) {
	since := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    order.StreamFilter
		wantWhere string
		wantArgs  []any
	}{
		{"empty", order.StreamFilter{}, "", nil},
		{"status", order.StreamFilter{Status: order.StatusDelivered}, " WHERE status = $1", []any{"delivered"}},
		{"since", order.StreamFilter{Since: since}, " WHERE created_at >= $1", []any{since}},
		{
			"both",
			order.StreamFilter{Status: order.StatusPending, Since: since},
			" WHERE status = $1 AND created_at >= $2",
			[]any{"pending", since},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildStreamFilter(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildOrderFilter(t *testing.T) {
	where, args := buildOrderFilter(order.Filter{Status: order.StatusConfirmed, Search: " 50%_off "})
	assert.Equal(t,
		` WHERE status = $1 AND (name ILIKE $2 ESCAPE '\' OR mobile LIKE $2 ESCAPE '\' OR id LIKE $2 ESCAPE '\')`,
		where)
	assert.Equal(t, []any{"confirmed", `%50\%\_off%`}, args)

	where, args = buildOrderFilter(order.Filter{Search: "   "})
	assert.Empty(t, where)
	assert.Nil(t, args)
}
