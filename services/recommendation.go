package services

import (
	"math"
	"sort"

	"dealscout/models"
)

const (
	priceWeight  = 70.0
	ratingWeight = 30.0
	maxRating    = 5.0
)

// Tier thresholds, inclusive lower bounds
const (
	excellentThreshold = 80.0
	goodThreshold      = 60.0
	fairThreshold      = 40.0
)

// Score rates every product against the rest of the batch and returns a new
// slice ordered by descending score. Equal scores keep their input order.
//
// The price component is relative to the cheapest and dearest product in the
// batch; the rating component is absolute. When all prices are equal the
// range is taken as 1, so every product gets a price component of 0.
func Score(products []models.Product) []models.Product {
	if len(products) == 0 {
		return products
	}

	minPrice, maxPrice := products[0].Price, products[0].Price
	for _, p := range products[1:] {
		minPrice = math.Min(minPrice, p.Price)
		maxPrice = math.Max(maxPrice, p.Price)
	}
	priceRange := maxPrice - minPrice
	if priceRange == 0 {
		priceRange = 1
	}

	scored := make([]models.Product, len(products))
	for i, p := range products {
		priceScore := (maxPrice - p.Price) / priceRange * priceWeight
		reviewScore := p.Rating / maxRating * ratingWeight
		final := math.Round((priceScore+reviewScore)*10) / 10

		p.RecommendationScore = &final
		// tier follows the published one-decimal score
		p.RecommendationTier = TierFor(final)
		scored[i] = p
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].RecommendationScore > *scored[j].RecommendationScore
	})
	return scored
}

// TierFor maps a score onto its recommendation tier
func TierFor(score float64) models.Tier {
	switch {
	case score >= excellentThreshold:
		return models.TierExcellent
	case score >= goodThreshold:
		return models.TierGood
	case score >= fairThreshold:
		return models.TierFair
	default:
		return models.TierWait
	}
}
