package model

import "math"

// Cents converts a decimal amount to integer cents, rounding half away
// from zero.
func Cents(amount float64) int64 { return int64(math.Round(amount * 100)) }

// Amount converts cents back to a decimal amount.
func Amount(cents int64) float64 { return float64(cents) / 100 }
