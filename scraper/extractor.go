package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"dealscout/models"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSourceLimit caps how many valid records one source contributes
const DefaultSourceLimit = 10

// Extractor turns a rendered search-results page into raw records
type Extractor interface {
	Source() models.SourceID
	Extract(markup, searchURL string, limit int) []models.RawRecord
}

// Rule locates one field inside an item fragment. An empty Attr reads the text.
type Rule struct {
	Selector string
	Attr     string
}

// FieldRules is an ordered fallback chain for a single field
type FieldRules []Rule

// First returns the first non-empty value produced by the rules, in order
func (fr FieldRules) First(item *goquery.Selection) string {
	for _, rule := range fr {
		sel := item.Find(rule.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		var value string
		if rule.Attr != "" {
			value, _ = sel.Attr(rule.Attr)
		} else {
			value = sel.Text()
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

// Present returns true if any of the rules matches an element
func (fr FieldRules) Present(item *goquery.Selection) bool {
	for _, rule := range fr {
		if item.Find(rule.Selector).Length() > 0 {
			return true
		}
	}
	return false
}

// ListingLayout describes where a source keeps each field of a listing
type ListingLayout struct {
	Source        models.SourceID
	BaseURL       string
	Item          string
	Title         FieldRules
	Price         FieldRules
	OriginalPrice FieldRules
	Discount      FieldRules
	Rating        FieldRules
	ReviewCount   FieldRules
	Link          FieldRules
	Image         FieldRules
	OutOfStock    FieldRules
	Delivery      func(item *goquery.Selection) string
}

// LayoutExtractor applies a ListingLayout with the shared resilience policy:
// malformed items are skipped, never fatal.
type LayoutExtractor struct {
	layout ListingLayout
	parser *LocaleParser
	logger *slog.Logger
}

// NewLayoutExtractor creates an extractor for a layout
func NewLayoutExtractor(layout ListingLayout, logger *slog.Logger) *LayoutExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LayoutExtractor{
		layout: layout,
		parser: NewLocaleParser(),
		logger: logger.With("source", string(layout.Source)),
	}
}

// Source returns the source the layout belongs to
func (e *LayoutExtractor) Source() models.SourceID {
	return e.layout.Source
}

// Extract walks item fragments in document order until limit valid records exist
func (e *LayoutExtractor) Extract(markup, searchURL string, limit int) []models.RawRecord {
	if limit <= 0 {
		limit = DefaultSourceLimit
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.logger.Warn("unparseable markup", "error", err)
		return nil
	}

	records := make([]models.RawRecord, 0, limit)
	skipped := 0
	doc.Find(e.layout.Item).EachWithBreak(func(i int, item *goquery.Selection) bool {
		// outer wrapper of another listing; the innermost match carries the card
		if item.Find(e.layout.Item).Length() > 0 {
			return true
		}
		record, err := e.extractItem(item, searchURL)
		if err != nil {
			skipped++
			e.logger.Debug("skipping listing", "index", i, "reason", err)
			return true
		}
		records = append(records, record)
		return len(records) < limit
	})

	e.logger.Info("extracted listings", "count", len(records), "skipped", skipped)
	return records
}

// extractItem reads one fragment. A panic while reading it only loses that item.
func (e *LayoutExtractor) extractItem(item *goquery.Selection, searchURL string) (record models.RawRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("error parsing listing", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	l := e.layout

	title := l.Title.First(item)
	if title == "" {
		return record, fmt.Errorf("missing title")
	}

	priceText := l.Price.First(item)
	price, err := e.parser.ParsePrice(priceText)
	if err != nil {
		return record, fmt.Errorf("invalid price: %w", err)
	}

	originalPrice := e.parser.ParseOptionalPrice(l.OriginalPrice.First(item))

	discount := e.parser.ParsePercent(l.Discount.First(item))
	if discount == nil && originalPrice != nil {
		discount = DiscountPercent(price, *originalPrice)
	}

	delivery := ""
	if l.Delivery != nil {
		delivery = l.Delivery(item)
	}

	return models.RawRecord{
		Title:            title,
		Price:            price,
		OriginalPrice:    originalPrice,
		DiscountPercent:  discount,
		Rating:           e.parser.ParseRating(l.Rating.First(item)),
		ReviewCount:      e.parser.ParseReviewCount(l.ReviewCount.First(item)),
		ProductURL:       resolveURL(l.BaseURL, l.Link.First(item), searchURL),
		ImageURL:         firstNonEmpty(l.Image.First(item), models.PlaceholderImage),
		Source:           l.Source,
		DeliveryEstimate: delivery,
		InStock:          !l.OutOfStock.Present(item),
	}, nil
}

// resolveURL makes href absolute against base, falling back when it cannot
func resolveURL(base, href, fallback string) string {
	if href == "" {
		return fallback
	}
	ref, err := url.Parse(href)
	if err != nil {
		return fallback
	}
	if ref.IsAbs() {
		return ref.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return fallback
	}
	return baseURL.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
