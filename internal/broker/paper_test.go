package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperMarketFillsImmediately(t *testing.T) {
	p := NewPaper()
	p.SetMid(6800.00)
	o, err := p.PlaceMarket(context.Background(), "ES", Long, 2)
	require.NoError(t, err)
	assert.Equal(t, Filled, o.Status)
	assert.Equal(t, 2, o.FilledQty)
	assert.Equal(t, 6800.00, o.AvgFillPrice)
}

func TestPaperLimitFillsWhenPriceCrosses(t *testing.T) {
	p := NewPaper()
	p.SetMid(6800.00)
	o, err := p.PlaceLimit(context.Background(), "ES", Long, 1, 6799.00)
	require.NoError(t, err)
	assert.Equal(t, Acked, o.Status)

	p.SetMid(6799.00)
	got, err := p.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, Filled, got.Status)
}

func TestPaperCancelStopsFutureFills(t *testing.T) {
	p := NewPaper()
	p.SetMid(6800.00)
	o, err := p.PlaceLimit(context.Background(), "ES", Short, 1, 6801.00)
	require.NoError(t, err)
	require.NoError(t, p.CancelOrder(context.Background(), o.ID))

	p.SetMid(6801.00)
	got, err := p.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, got.Status)
}

func TestPaperMarketRejectsWithoutMid(t *testing.T) {
	p := NewPaper()
	_, err := p.PlaceMarket(context.Background(), "ES", Long, 1)
	assert.Error(t, err)
}

func TestOrderFillRatio(t *testing.T) {
	o := Order{RequestedQty: 4, FilledQty: 2}
	assert.Equal(t, 0.5, o.FillRatio())
}
