package models

import (
	"errors"

	"github.com/shopspring/decimal"

	"limit-book/src/engine"
)

var tickFactor = decimal.New(1, engine.PriceScale)

// ParsePrice converts a decimal price string into engine ticks. Prices finer
// than the tick size are rejected rather than silently rounded.
func ParsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.New("price must be a decimal number")
	}

	scaled := d.Mul(tickFactor)
	if !scaled.IsInteger() {
		return 0, errors.New("price is finer than the minimum tick of 0.0001")
	}
	return scaled.IntPart(), nil
}

// FormatPrice renders engine ticks as a decimal string, e.g. 1005000 -> "100.5".
func FormatPrice(ticks int64) string {
	return decimal.New(ticks, -engine.PriceScale).String()
}

// FormatMidPrice renders the midpoint of two tick prices exactly, including
// half-tick midpoints the int64 tick representation cannot hold.
func FormatMidPrice(bidTicks, askTicks int64) string {
	sum := decimal.NewFromInt(bidTicks + askTicks)
	return sum.Div(decimal.NewFromInt(2)).Shift(-engine.PriceScale).String()
}
