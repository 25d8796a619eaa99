package scraper

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultRating      = 4.0
	DefaultReviewCount = 100
	maxRating          = 5.0
)

// LocaleParser turns listing text into numbers, tolerating currency glyphs and
// grouping separators ("₹1,23,999", "Rs. 1,299.00", "4.3 out of 5 stars").
type LocaleParser struct {
	currency *regexp.Regexp
	decimal  *regexp.Regexp
	integer  *regexp.Regexp
}

// NewLocaleParser creates a new locale-aware parser
func NewLocaleParser() *LocaleParser {
	return &LocaleParser{
		currency: regexp.MustCompile(`(?i)(₹|rs\.?|inr|\$|£|€)`),
		decimal:  regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`),
		integer:  regexp.MustCompile(`[0-9]+`),
	}
}

// ParsePrice extracts a positive amount from price text
func (lp *LocaleParser) ParsePrice(text string) (float64, error) {
	clean := lp.stripFormatting(text)
	match := lp.decimal.FindString(clean)
	if match == "" {
		return 0, fmt.Errorf("no price found in: %q", text)
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", match, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("non-positive price in: %q", text)
	}
	return value, nil
}

// ParseOptionalPrice is ParsePrice for fields that may be absent
func (lp *LocaleParser) ParseOptionalPrice(text string) *float64 {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	value, err := lp.ParsePrice(text)
	if err != nil {
		return nil
	}
	return &value
}

// ParseRating returns the first decimal in the text, or DefaultRating if it
// is missing or outside [0,5]
func (lp *LocaleParser) ParseRating(text string) float64 {
	match := lp.decimal.FindString(text)
	if match == "" {
		return DefaultRating
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil || value < 0 || value > maxRating {
		return DefaultRating
	}
	return value
}

// ParseReviewCount returns the first integer in the text, or DefaultReviewCount
func (lp *LocaleParser) ParseReviewCount(text string) int {
	match := lp.integer.FindString(lp.stripGrouping(text))
	if match == "" {
		return DefaultReviewCount
	}
	value, err := strconv.Atoi(match)
	if err != nil || value < 0 {
		return DefaultReviewCount
	}
	return value
}

// ParsePercent reads an explicit discount such as "23% off"
func (lp *LocaleParser) ParsePercent(text string) *int {
	match := lp.integer.FindString(text)
	if match == "" {
		return nil
	}
	value, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	value = clampPercent(value)
	return &value
}

// DiscountPercent computes the rounded discount of price against originalPrice
func DiscountPercent(price, originalPrice float64) *int {
	if originalPrice <= 0 {
		return nil
	}
	value := clampPercent(int(math.Round((originalPrice - price) / originalPrice * 100)))
	return &value
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (lp *LocaleParser) stripFormatting(text string) string {
	text = lp.currency.ReplaceAllString(text, "")
	return lp.stripGrouping(text)
}

// stripGrouping removes thousands separators. Both western (1,234,567) and
// Indian (12,34,567) grouping use commas, so every comma goes.
func (lp *LocaleParser) stripGrouping(text string) string {
	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, " ", "")
	return strings.TrimSpace(text)
}
