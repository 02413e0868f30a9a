package core

import "strings"

// Category is a canonical spending sub-category. Every free-text label the
// extractor produces maps onto exactly one of these; nothing else reaches
// aggregation.
type Category string

const (
	CategoryGroceries     Category = "Groceries"
	CategoryDiningOut     Category = "Dining Out"
	CategoryCoffee        Category = "Coffee & Beverages"
	CategoryRent          Category = "Rent & Mortgage"
	CategoryUtilities     Category = "Utilities"
	CategoryTransport     Category = "Transportation"
	CategoryHealthcare    Category = "Healthcare"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryHousehold     Category = "Household Goods"
	CategoryEducation     Category = "Education"
	CategoryTravel        Category = "Travel"
	CategorySubscriptions Category = "Subscriptions"
	CategoryPersonalCare  Category = "Personal Care"
	CategoryInvesting     Category = "Savings & Investment"
	CategoryInsurance     Category = "Insurance"
	CategoryUnclassified  Category = "Unclassified"
)

// SpendClass is one of the four coarse behavioral buckets used for the
// psychological spending report.
type SpendClass string

const (
	ClassInvestment SpendClass = "Investment/Asset"
	ClassExperience SpendClass = "Experience/Consumption"
	ClassHabit      SpendClass = "Habit/Impulse"
	ClassFixed      SpendClass = "Fixed/Essential"
)

// classByCategory assigns each canonical category a behavioral class.
// Unclassified sits in Experience/Consumption so unknown labels neither
// inflate the impulse index nor count as essential spend.
var classByCategory = map[Category]SpendClass{
	CategoryGroceries:     ClassFixed,
	CategoryDiningOut:     ClassExperience,
	CategoryCoffee:        ClassHabit,
	CategoryRent:          ClassFixed,
	CategoryUtilities:     ClassFixed,
	CategoryTransport:     ClassFixed,
	CategoryHealthcare:    ClassFixed,
	CategoryEntertainment: ClassExperience,
	CategoryShopping:      ClassHabit,
	CategoryHousehold:     ClassFixed,
	CategoryEducation:     ClassInvestment,
	CategoryTravel:        ClassExperience,
	CategorySubscriptions: ClassHabit,
	CategoryPersonalCare:  ClassHabit,
	CategoryInvesting:     ClassInvestment,
	CategoryInsurance:     ClassFixed,
	CategoryUnclassified:  ClassExperience,
}

// categoryAliases maps lower-cased raw labels onto canonical categories.
// The Korean labels are the ones the reference extraction prompt produces.
// This is versioned configuration data: extend the table, not the pipeline.
var categoryAliases = map[string]Category{
	"groceries":          CategoryGroceries,
	"grocery":            CategoryGroceries,
	"supermarket":        CategoryGroceries,
	"food":               CategoryGroceries,
	"식비":                 CategoryGroceries,
	"dining out":         CategoryDiningOut,
	"dining":             CategoryDiningOut,
	"restaurant":         CategoryDiningOut,
	"외식":                 CategoryDiningOut,
	"coffee & beverages": CategoryCoffee,
	"coffee":             CategoryCoffee,
	"cafe":               CategoryCoffee,
	"beverages":          CategoryCoffee,
	"카페":                 CategoryCoffee,
	"rent & mortgage":    CategoryRent,
	"rent":               CategoryRent,
	"mortgage":           CategoryRent,
	"주거":                 CategoryRent,
	"utilities":          CategoryUtilities,
	"공과금":                CategoryUtilities,
	"transportation":     CategoryTransport,
	"transport":          CategoryTransport,
	"fuel":               CategoryTransport,
	"교통":                 CategoryTransport,
	"healthcare":         CategoryHealthcare,
	"health":             CategoryHealthcare,
	"pharmacy":           CategoryHealthcare,
	"의료":                 CategoryHealthcare,
	"entertainment":      CategoryEntertainment,
	"leisure":            CategoryEntertainment,
	"문화/여가":              CategoryEntertainment,
	"shopping":           CategoryShopping,
	"clothing":           CategoryShopping,
	"쇼핑":                 CategoryShopping,
	"household goods":    CategoryHousehold,
	"household":          CategoryHousehold,
	"생활용품":               CategoryHousehold,
	"education":          CategoryEducation,
	"교육":                 CategoryEducation,
	"travel":             CategoryTravel,
	"여행":                 CategoryTravel,
	"subscriptions":      CategorySubscriptions,
	"subscription":       CategorySubscriptions,
	"구독":                 CategorySubscriptions,
	"personal care":      CategoryPersonalCare,
	"beauty":             CategoryPersonalCare,
	"미용":                 CategoryPersonalCare,
	"savings & investment": CategoryInvesting,
	"savings":              CategoryInvesting,
	"investment":           CategoryInvesting,
	"저축/투자":               CategoryInvesting,
	"insurance":            CategoryInsurance,
	"보험":                   CategoryInsurance,
}

// CanonicalCategory maps a raw free-text label onto the canonical set.
// Empty and unrecognized labels map to Unclassified; the function is total.
func CanonicalCategory(label string) Category {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return CategoryUnclassified
	}
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	return CategoryUnclassified
}

// Class returns the behavioral class for a category. Categories outside the
// table (which should not occur) are treated like Unclassified.
func (c Category) Class() SpendClass {
	if cl, ok := classByCategory[c]; ok {
		return cl
	}
	return ClassExperience
}

// Categories returns the canonical category list in a stable order, for
// UI pickers and validation.
func Categories() []Category {
	return []Category{
		CategoryGroceries, CategoryDiningOut, CategoryCoffee, CategoryRent,
		CategoryUtilities, CategoryTransport, CategoryHealthcare,
		CategoryEntertainment, CategoryShopping, CategoryHousehold,
		CategoryEducation, CategoryTravel, CategorySubscriptions,
		CategoryPersonalCare, CategoryInvesting, CategoryInsurance,
		CategoryUnclassified,
	}
}
