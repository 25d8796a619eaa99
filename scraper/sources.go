package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"dealscout/models"

	"github.com/PuerkitoBio/goquery"
)

// Source couples a retailer's search endpoint with its extractor
type Source struct {
	ID        models.SourceID
	BaseURL   string
	SearchURL func(query string) string
	Extractor Extractor
}

// NewAmazonSource builds the Amazon search-results source
func NewAmazonSource(baseURL string, logger *slog.Logger) Source {
	baseURL = strings.TrimRight(baseURL, "/")
	return Source{
		ID:      models.SourceAmazon,
		BaseURL: baseURL,
		SearchURL: func(query string) string {
			return fmt.Sprintf("%s/s?k=%s", baseURL, url.QueryEscape(query))
		},
		Extractor: NewLayoutExtractor(AmazonLayout(baseURL), logger),
	}
}

// NewFlipkartSource builds the Flipkart search-results source
func NewFlipkartSource(baseURL string, logger *slog.Logger) Source {
	baseURL = strings.TrimRight(baseURL, "/")
	return Source{
		ID:      models.SourceFlipkart,
		BaseURL: baseURL,
		SearchURL: func(query string) string {
			return fmt.Sprintf("%s/search?q=%s", baseURL, url.QueryEscape(query))
		},
		Extractor: NewLayoutExtractor(FlipkartLayout(baseURL), logger),
	}
}

// NewSource builds a source by its configured name
func NewSource(name, baseURL string, logger *slog.Logger) (Source, error) {
	switch models.SourceID(name) {
	case models.SourceAmazon:
		return NewAmazonSource(baseURL, logger), nil
	case models.SourceFlipkart:
		return NewFlipkartSource(baseURL, logger), nil
	default:
		return Source{}, fmt.Errorf("unknown source: %q", name)
	}
}

// AmazonLayout returns the field rules for Amazon search results
func AmazonLayout(baseURL string) ListingLayout {
	return ListingLayout{
		Source:  models.SourceAmazon,
		BaseURL: baseURL,
		Item:    `div[data-component-type="s-search-result"]`,
		Title: FieldRules{
			{Selector: "h2 a span"},
			{Selector: "h2 span"},
			{Selector: "h2"},
		},
		Price: FieldRules{
			{Selector: "span.a-price:not(.a-text-price) span.a-price-whole"},
			{Selector: "span.a-price-whole"},
			{Selector: "span.a-price:not(.a-text-price) span.a-offscreen"},
		},
		OriginalPrice: FieldRules{
			{Selector: "span.a-price.a-text-price span.a-offscreen"},
		},
		Discount: FieldRules{
			{Selector: "span.savingsPercentage"},
		},
		Rating: FieldRules{
			{Selector: "span.a-icon-alt"},
		},
		ReviewCount: FieldRules{
			{Selector: "span.a-size-base.s-underline-text"},
			{Selector: `a[href*="customerReviews"] span`},
		},
		Link: FieldRules{
			{Selector: "h2 a", Attr: "href"},
			{Selector: "a.a-link-normal.s-no-outline", Attr: "href"},
			{Selector: "a.a-link-normal", Attr: "href"},
		},
		Image: FieldRules{
			{Selector: "img.s-image", Attr: "src"},
		},
		Delivery: func(item *goquery.Selection) string {
			if item.Find("i.a-icon-prime").Length() > 0 {
				return "1-2 days"
			}
			return "3-5 days"
		},
	}
}

// FlipkartLayout returns the field rules for Flipkart search results. Flipkart
// ships two card layouts (list and grid) with different class names.
func FlipkartLayout(baseURL string) ListingLayout {
	return ListingLayout{
		Source:  models.SourceFlipkart,
		BaseURL: baseURL,
		Item:    "div._1AtVbE, div._13oc-S, div._2kHMtA",
		Title: FieldRules{
			{Selector: "div._4rR01T"},
			{Selector: "a._1fQZEK"},
			{Selector: "div.s1Q9rs"},
			{Selector: "a.s1Q9rs"},
			{Selector: "a.IRpwTa"},
		},
		Price: FieldRules{
			{Selector: "div._30jeq3"},
			{Selector: "div._25b18c"},
		},
		OriginalPrice: FieldRules{
			{Selector: "div._3I9_wc"},
			{Selector: "div._3auQ3N"},
		},
		Discount: FieldRules{
			{Selector: "div._3Ay6Sb"},
		},
		Rating: FieldRules{
			{Selector: "div._3LWZlK"},
		},
		ReviewCount: FieldRules{
			{Selector: "span._2_R_DZ"},
			{Selector: "span._13vcmD"},
		},
		Link: FieldRules{
			{Selector: "a._1fQZEK", Attr: "href"},
			{Selector: "a.IRpwTa", Attr: "href"},
			{Selector: "a._2rpwqI", Attr: "href"},
			{Selector: "a.s1Q9rs", Attr: "href"},
		},
		Image: FieldRules{
			{Selector: "img._396cs4", Attr: "src"},
			{Selector: "img._2r_T1I", Attr: "src"},
		},
		OutOfStock: FieldRules{
			{Selector: "div._3G6awp"},
		},
		Delivery: func(*goquery.Selection) string {
			return "2-4 days"
		},
	}
}
