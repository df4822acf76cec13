package models

// Prices are integer toman. Percentage math uses floor division and
// fixed-amount subtraction never goes below zero.

func PercentOff(amount, percent int64) int64 {
	return amount - amount*percent/100
}

func SubtractClamped(amount, sub int64) int64 {
	if sub >= amount {
		return 0
	}
	return amount - sub
}
