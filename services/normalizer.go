package services

import (
	"fmt"

	"dealscout/models"
)

// Normalize maps raw records onto canonical products, preserving order.
// IDs are "{source}-{n}" where n counts records of that source from zero.
// Optional fields stay unset when the source did not provide them.
func Normalize(records []models.RawRecord) []models.Product {
	products := make([]models.Product, 0, len(records))
	positions := make(map[models.SourceID]int)

	for _, r := range records {
		pos := positions[r.Source]
		positions[r.Source] = pos + 1

		p := models.Product{
			ID:               fmt.Sprintf("%s-%d", r.Source, pos),
			Name:             r.Title,
			Image:            r.ImageURL,
			Source:           r.Source,
			Price:            r.Price,
			Rating:           r.Rating,
			ReviewCount:      r.ReviewCount,
			DeliveryEstimate: r.DeliveryEstimate,
			InStock:          r.InStock,
			URL:              r.ProductURL,
		}
		if r.OriginalPrice != nil {
			v := *r.OriginalPrice
			p.OriginalPrice = &v
		}
		if r.DiscountPercent != nil {
			v := *r.DiscountPercent
			p.Discount = &v
		}
		products = append(products, p)
	}
	return products
}
