// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

package lifecycle

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// maxPaidMinutes keeps start + minutes inside time.Duration range.
const maxPaidMinutes = math.MaxInt64 / int64(time.Minute)

// MinutesFor converts a payment amount into whole paid minutes at rate.
// Nil, zero and negative amounts buy nothing.
func MinutesFor(amount *decimal.Decimal, rate decimal.Decimal) int64 {
	if amount == nil || !amount.IsPositive() || !rate.IsPositive() {
		return 0
	}
	// QuoRem at precision 0 is exact integer division; Div rounds first.
	q, _ := amount.QuoRem(rate, 0)
	if q.GreaterThan(decimal.NewFromInt(maxPaidMinutes)) {
		return maxPaidMinutes
	}
	return q.IntPart()
}

// PaidUntil returns start extended by the minutes amount buys.
func PaidUntil(start time.Time, amount *decimal.Decimal, rate decimal.Decimal) time.Time {
	return start.Add(time.Duration(MinutesFor(amount, rate)) * time.Minute)
}
