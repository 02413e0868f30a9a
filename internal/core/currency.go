package core

// CurrencyTable maps a currency code to home-currency units per one foreign
// unit. The home currency itself always carries rate 1. Tables are built
// once by the rate provider and never mutated afterwards.
type CurrencyTable map[string]float64

// usdEquivalentRate stands in when a known currency carries a zero rate,
// which we treat as corrupt provider data rather than dividing the world
// by it.
const usdEquivalentRate = 1350.0

// Convert turns a native-currency amount into the home currency.
// An unknown currency code is treated as already-home rather than failing;
// a zero rate for a known code falls back to a fixed USD-equivalent rate.
func (t CurrencyTable) Convert(amount float64, currency, home string) float64 {
	if currency == home {
		return amount
	}
	rate, ok := t[currency]
	if !ok {
		return amount
	}
	if rate == 0 {
		rate = usdEquivalentRate
	}
	return amount * rate
}
