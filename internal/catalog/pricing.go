package catalog

import (
	"strings" // Category matching

	"github.com/shopspring/decimal" // Money rounding
)

// priceBand is an inclusive-exclusive price range for a category keyword
type priceBand struct {
	keyword  string
	min, max float64
}

// The external catalog carries no price, so one is drawn from a band chosen
// by the first matching category keyword.
var (
	priceBands = []priceBand{
		{keyword: "Boissons", min: 1.0, max: 5.0},
		{keyword: "Snacks", min: 0.5, max: 3.0},
		{keyword: "Produits frais", min: 2.0, max: 10.0},
	}
	defaultBand = priceBand{min: 1.0, max: 20.0}
)

// bandFor returns the price band for a category string
func bandFor(category string) priceBand {
	for _, b := range priceBands {
		if strings.Contains(category, b.keyword) {
			return b
		}
	}
	return defaultBand
}

// GeneratePrice draws a price for category; rnd returns values in [0,1)
func GeneratePrice(category string, rnd func() float64) float64 {
	b := bandFor(category)
	raw := decimal.NewFromFloat(rnd()*(b.max-b.min) + b.min)
	price, _ := raw.Round(2).Float64()
	return price
}
