// Package render substitutes product fields into broadcast templates.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/user/cesto-ofertas-go/internal/model"
)

// Supported placeholders
const (
	PlaceholderProduct     = "{produto}"
	PlaceholderDescription = "{descricao}"
	PlaceholderPrice       = "{preco}"
	PlaceholderLink        = "{link}"
)

var placeholderPattern = regexp.MustCompile(`\{[^{}\s]+\}`)

// Fields are the values available to a template
type Fields struct {
	Produto   string
	Descricao string
	Preco     float64
	Link      string
}

// FieldsFromProduct maps a product onto template fields
func FieldsFromProduct(p *model.Product) Fields {
	if p == nil {
		return Fields{}
	}
	return Fields{
		Produto:   p.Name,
		Descricao: p.Description,
		Preco:     p.Price,
		Link:      p.AffiliateURL,
	}
}

// FormatPrice renders a price as Brazilian currency text with two decimals
func FormatPrice(price float64) string {
	return fmt.Sprintf("R$ %.2f", price)
}

// Render replaces every occurrence of each supported placeholder in one
// left-to-right pass. Substituted values are not scanned again and unknown
// placeholders are kept verbatim.
func Render(template string, f Fields) string {
	r := strings.NewReplacer(
		PlaceholderProduct, f.Produto,
		PlaceholderDescription, f.Descricao,
		PlaceholderPrice, FormatPrice(f.Preco),
		PlaceholderLink, f.Link,
	)
	return r.Replace(template)
}

// Placeholders lists the supported placeholders in substitution order
func Placeholders() []string {
	return []string{PlaceholderProduct, PlaceholderDescription, PlaceholderPrice, PlaceholderLink}
}

// Unknown returns the distinct brace tokens in template that Render will leave untouched
func Unknown(template string) []string {
	known := make(map[string]bool)
	for _, p := range Placeholders() {
		known[p] = true
	}

	seen := make(map[string]bool)
	var unknown []string
	for _, tok := range placeholderPattern.FindAllString(template, -1) {
		if known[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		unknown = append(unknown, tok)
	}
	return unknown
}
