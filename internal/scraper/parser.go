// Package scraper reads product metadata from affiliate pages.
package scraper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Metadata is what a product page tells about itself
type Metadata struct {
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    string  `json:"image_url"`
	Price       float64 `json:"price"`
	HasPrice    bool    `json:"has_price"`
}

var (
	nonPriceChars  = regexp.MustCompile(`[^0-9.,]`)
	ldPricePattern = regexp.MustCompile(`"price"\s*:\s*"?([0-9.,]+)"?`)
)

// Parse extracts metadata from an HTML document. Open Graph tags win over
// generic tags; the price falls back from meta tags to itemprop to JSON-LD.
func Parse(r io.Reader) (*Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	md := &Metadata{
		Title: firstNonEmpty(
			metaContent(doc, "meta[property='og:title']"),
			metaContent(doc, "meta[name='twitter:title']"),
			strings.TrimSpace(doc.Find("title").First().Text()),
			strings.TrimSpace(doc.Find("h1").First().Text()),
		),
		Description: firstNonEmpty(
			metaContent(doc, "meta[property='og:description']"),
			metaContent(doc, "meta[name='description']"),
		),
		ImageURL: firstNonEmpty(
			metaContent(doc, "meta[property='og:image']"),
			metaContent(doc, "meta[name='twitter:image']"),
		),
	}

	priceText := firstNonEmpty(
		metaContent(doc, "meta[property='product:price:amount']"),
		metaContent(doc, "meta[property='og:price:amount']"),
		metaContent(doc, "[itemprop='price']"),
		strings.TrimSpace(doc.Find("[itemprop='price']").First().Text()),
		jsonLDPrice(doc),
	)
	if priceText != "" {
		price, err := ParsePrice(priceText)
		if err != nil {
			log.Debug().Err(err).Str("price", priceText).Msg("Ignoring unparseable price")
		} else {
			md.Price = price
			md.HasPrice = true
		}
	}

	return md, nil
}

// ParsePrice converts "R$ 1.299,99", "1299.99" or "1,299.99" to a float.
// The right-most separator is taken as the decimal point when followed by one or two digits.
func ParsePrice(text string) (float64, error) {
	cleaned := nonPriceChars.ReplaceAllString(text, "")
	if cleaned == "" {
		return 0, fmt.Errorf("no digits in price %q", text)
	}

	sep := strings.LastIndexAny(cleaned, ".,")
	var normalized string
	if sep >= 0 && len(cleaned)-sep-1 <= 2 && len(cleaned)-sep-1 > 0 {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(cleaned[:sep])
		normalized = intPart + "." + cleaned[sep+1:]
	} else {
		normalized = strings.NewReplacer(".", "", ",", "").Replace(cleaned)
	}

	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price %q: %w", text, err)
	}
	if price < 0 {
		return 0, fmt.Errorf("negative price %q", text)
	}
	return price, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// jsonLDPrice looks for an offer price in JSON-LD blocks
func jsonLDPrice(doc *goquery.Document) string {
	var price string
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := s.Text()
		var ld struct {
			Offers json.RawMessage `json:"offers"`
		}
		if err := json.Unmarshal([]byte(text), &ld); err == nil && len(ld.Offers) > 0 {
			var offer struct {
				Price json.Number `json:"price"`
			}
			if err := json.Unmarshal(ld.Offers, &offer); err == nil && offer.Price != "" {
				price = offer.Price.String()
				return false
			}
		}
		if m := ldPricePattern.FindStringSubmatch(text); len(m) > 1 {
			price = m[1]
			return false
		}
		return true
	})
	return price
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
