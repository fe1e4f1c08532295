package store

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToFloat(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
	}{
		{nil, 0},
		{1.5, 1.5},
		{float32(2), 2},
		{int64(7), 7},
		{"12.25", 12.25},
		{[]byte("3.5000"), 3.5},
		{"", 0},
		{"NaN", 0},
		{"abc", 0},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{decimal.RequireFromString("9.99"), 9.99},
		{struct{}{}, 0},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, toFloat(c.in), 1e-9, "%#v", c.in)
	}
}

func TestToInt(t *testing.T) {
	assert.Equal(t, int64(42), toInt(int64(42)))
	assert.Equal(t, int64(42), toInt("42"))
	assert.Equal(t, int64(42), toInt([]byte("42.0")))
	assert.Equal(t, int64(0), toInt(nil))
	assert.Equal(t, int64(3), toInt(2.6))
}

func TestToStringAndTime(t *testing.T) {
	assert.Equal(t, "2024-01-01", toString("2024-01-01"))
	assert.Equal(t, "2024-01-01", toString([]byte("2024-01-01")))
	assert.Equal(t, "", toString(nil))
	assert.Equal(t, "2024-01-01", toString(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	assert.True(t, ts.Equal(toTime(ts)))
	assert.True(t, ts.Equal(toTime("2024-05-06 07:08:09")))
	assert.True(t, toTime(nil).IsZero())
}

func TestAvgDailyCost(t *testing.T) {
	assert.Zero(t, AvgDailyCost(10, 0))
	assert.Zero(t, AvgDailyCost(0, 0))
	assert.Equal(t, 2.5, AvgDailyCost(10, 4))
}
