package services

import (
	"testing"

	"dealscout/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestNormalizeAssignsPerSourcePositions(t *testing.T) {
	records := []models.RawRecord{
		{Title: "A0", Price: 10, Source: models.SourceAmazon},
		{Title: "A1", Price: 20, Source: models.SourceAmazon},
		{Title: "F0", Price: 30, Source: models.SourceFlipkart},
		{Title: "A2", Price: 40, Source: models.SourceAmazon},
		{Title: "F1", Price: 50, Source: models.SourceFlipkart},
	}

	products := Normalize(records)
	require.Len(t, products, 5)

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"amazon-0", "amazon-1", "flipkart-0", "amazon-2", "flipkart-1"}, ids)
	assert.Equal(t, "A0", products[0].Name)
	assert.Equal(t, "F1", products[4].Name)
}

func TestNormalizeCopiesFields(t *testing.T) {
	raw := models.RawRecord{
		Title:            "Kettle",
		Price:            1299,
		OriginalPrice:    floatPtr(1999),
		DiscountPercent:  intPtr(35),
		Rating:           4.2,
		ReviewCount:      812,
		ProductURL:       "https://www.amazon.in/dp/K1",
		ImageURL:         "https://m.media-amazon.com/k1.jpg",
		Source:           models.SourceAmazon,
		DeliveryEstimate: "1-2 days",
		InStock:          true,
	}

	p := Normalize([]models.RawRecord{raw})[0]
	assert.Equal(t, models.Product{
		ID:               "amazon-0",
		Name:             "Kettle",
		Image:            "https://m.media-amazon.com/k1.jpg",
		Source:           models.SourceAmazon,
		Price:            1299,
		OriginalPrice:    floatPtr(1999),
		Rating:           4.2,
		ReviewCount:      812,
		Discount:         intPtr(35),
		DeliveryEstimate: "1-2 days",
		InStock:          true,
		URL:              "https://www.amazon.in/dp/K1",
	}, p)
	assert.False(t, p.Scored())

	*raw.OriginalPrice = 1
	assert.Equal(t, 1999.0, *p.OriginalPrice)
}

func TestNormalizeLeavesOptionalFieldsUnset(t *testing.T) {
	p := Normalize([]models.RawRecord{{Title: "Plain", Price: 5, Source: models.SourceFlipkart}})[0]
	assert.Nil(t, p.OriginalPrice)
	assert.Nil(t, p.Discount)
	assert.Nil(t, p.RecommendationScore)
	assert.Empty(t, p.RecommendationTier)
}

func TestNormalizeEmpty(t *testing.T) {
	products := Normalize(nil)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}
