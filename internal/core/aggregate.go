package core

import "math"

// SumByCategory groups line items by canonical category and sums their
// home-currency amounts.
func SumByCategory(items []LineItem) map[Category]float64 {
	out := make(map[Category]float64)
	for _, it := range items {
		out[it.Category] += it.HomeAmount
	}
	return out
}

// SumByClass groups line items by behavioral class and sums their
// home-currency amounts.
func SumByClass(items []LineItem) map[SpendClass]float64 {
	out := make(map[SpendClass]float64)
	for _, it := range items {
		out[it.Category.Class()] += it.HomeAmount
	}
	return out
}

// ImpulseIndex blends the Habit/Impulse share of spend with the share of
// transaction count: (impulse spend / total spend) × sqrt(impulse count /
// total count). It is 0 for an empty or zero-spend ledger and bounded in
// [0,1] otherwise.
func ImpulseIndex(items []LineItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var totalSpend, impulseSpend float64
	var impulseCount int
	for _, it := range items {
		totalSpend += it.HomeAmount
		if it.Category.Class() == ClassHabit {
			impulseSpend += it.HomeAmount
			impulseCount++
		}
	}
	if totalSpend <= 0 {
		return 0
	}
	share := impulseSpend / totalSpend
	freq := float64(impulseCount) / float64(len(items))
	return share * math.Sqrt(freq)
}
