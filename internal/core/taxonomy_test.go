package core

import "testing"

func TestCanonicalCategory(t *testing.T) {
	tests := []struct {
		label string
		want  Category
	}{
		{"Groceries", CategoryGroceries},
		{"  groceries  ", CategoryGroceries},
		{"COFFEE", CategoryCoffee},
		{"Coffee & Beverages", CategoryCoffee},
		{"식비", CategoryGroceries},
		{"교통", CategoryTransport},
		{"생활용품", CategoryHousehold},
		{"문화/여가", CategoryEntertainment},
		{"기타", CategoryUnclassified},
		{"", CategoryUnclassified},
		{"quantum widgets", CategoryUnclassified},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := CanonicalCategory(tt.label); got != tt.want {
				t.Errorf("CanonicalCategory(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

// Every canonical category must land in one of the four behavioral classes;
// the mapping has no gaps.
func TestEveryCategoryHasClass(t *testing.T) {
	valid := map[SpendClass]bool{
		ClassInvestment: true,
		ClassExperience: true,
		ClassHabit:      true,
		ClassFixed:      true,
	}
	for _, cat := range Categories() {
		if !valid[cat.Class()] {
			t.Errorf("category %q maps to unknown class %q", cat, cat.Class())
		}
	}
}

// Every alias must resolve to a category in the canonical list.
func TestAliasesResolveToCanonicalSet(t *testing.T) {
	canonical := make(map[Category]bool)
	for _, c := range Categories() {
		canonical[c] = true
	}
	for label, cat := range categoryAliases {
		if !canonical[cat] {
			t.Errorf("alias %q maps to non-canonical category %q", label, cat)
		}
	}
}
