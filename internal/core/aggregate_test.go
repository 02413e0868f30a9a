package core

import (
	"math"
	"testing"
)

func ledgerFixture() []LineItem {
	return []LineItem{
		{Name: "Rice", Category: CategoryGroceries, HomeAmount: 20000},
		{Name: "Latte", Category: CategoryCoffee, HomeAmount: 5000},
		{Name: "Americano", Category: CategoryCoffee, HomeAmount: 4000},
		{Name: "Movie ticket", Category: CategoryEntertainment, HomeAmount: 11000},
	}
}

func TestSumByCategory(t *testing.T) {
	got := SumByCategory(ledgerFixture())

	want := map[Category]float64{
		CategoryGroceries:     20000,
		CategoryCoffee:        9000,
		CategoryEntertainment: 11000,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d categories, want %d: %v", len(got), len(want), got)
	}
	for cat, amount := range want {
		if !approxEqual(got[cat], amount) {
			t.Errorf("%s = %v, want %v", cat, got[cat], amount)
		}
	}
}

func TestSumByClass(t *testing.T) {
	got := SumByClass(ledgerFixture())

	if !approxEqual(got[ClassFixed], 20000) {
		t.Errorf("fixed = %v, want 20000", got[ClassFixed])
	}
	if !approxEqual(got[ClassHabit], 9000) {
		t.Errorf("habit = %v, want 9000", got[ClassHabit])
	}
	if !approxEqual(got[ClassExperience], 11000) {
		t.Errorf("experience = %v, want 11000", got[ClassExperience])
	}
}

func TestImpulseIndex(t *testing.T) {
	t.Run("empty ledger", func(t *testing.T) {
		if got := ImpulseIndex(nil); got != 0 {
			t.Errorf("empty ledger index = %v, want 0", got)
		}
	})

	t.Run("zero spend", func(t *testing.T) {
		items := []LineItem{{Category: CategoryCoffee, HomeAmount: 0}}
		if got := ImpulseIndex(items); got != 0 {
			t.Errorf("zero-spend index = %v, want 0", got)
		}
	})

	t.Run("mixed ledger", func(t *testing.T) {
		items := ledgerFixture()
		// 9000/40000 spend share, 2/4 transaction share.
		want := (9000.0 / 40000.0) * math.Sqrt(2.0/4.0)
		if got := ImpulseIndex(items); !approxEqual(got, want) {
			t.Errorf("index = %v, want %v", got, want)
		}
	})

	t.Run("all impulse", func(t *testing.T) {
		items := []LineItem{
			{Category: CategoryShopping, HomeAmount: 100},
			{Category: CategoryCoffee, HomeAmount: 50},
		}
		if got := ImpulseIndex(items); !approxEqual(got, 1) {
			t.Errorf("all-impulse index = %v, want 1", got)
		}
	})
}
