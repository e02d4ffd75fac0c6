package scraper

import (
	"strings"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{input: "R$ 1.299,99", want: 1299.99},
		{input: "1299.99", want: 1299.99},
		{input: "1,299.99", want: 1299.99},
		{input: "R$ 9,5", want: 9.5},
		{input: "1.299", want: 1299},
		{input: "299", want: 299},
		{input: "0,50", want: 0.5},
		{input: "grátis", wantErr: true},
		{input: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantTitle string
		wantDesc  string
		wantImage string
		wantPrice float64
		hasPrice  bool
	}{
		{
			name: "open graph tags",
			html: `<html><head>
				<meta property="og:title" content="Smartphone Samsung Galaxy A54">
				<meta property="og:description" content="128GB, câmera tripla">
				<meta property="og:image" content="https://cdn.example.com/a54.jpg">
				<meta property="product:price:amount" content="1299.99">
				<title>ignored</title></head></html>`,
			wantTitle: "Smartphone Samsung Galaxy A54",
			wantDesc:  "128GB, câmera tripla",
			wantImage: "https://cdn.example.com/a54.jpg",
			wantPrice: 1299.99,
			hasPrice:  true,
		},
		{
			name: "fallback to title and itemprop text",
			html: `<html><head><title> Fone JBL </title>
				<meta name="description" content="Bluetooth"></head>
				<body><span itemprop="price">R$ 299,99</span></body></html>`,
			wantTitle: "Fone JBL",
			wantDesc:  "Bluetooth",
			wantPrice: 299.99,
			hasPrice:  true,
		},
		{
			name: "json-ld offer",
			html: `<html><head><title>Lamp</title>
				<script type="application/ld+json">{"@type":"Product","offers":{"@type":"Offer","price":"9.50","priceCurrency":"BRL"}}</script>
				</head></html>`,
			wantTitle: "Lamp",
			wantPrice: 9.5,
			hasPrice:  true,
		},
		{
			name:      "no price",
			html:      `<html><body><h1>Only heading</h1></body></html>`,
			wantTitle: "Only heading",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := Parse(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if md.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", md.Title, tt.wantTitle)
			}
			if md.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", md.Description, tt.wantDesc)
			}
			if md.ImageURL != tt.wantImage {
				t.Errorf("ImageURL = %q, want %q", md.ImageURL, tt.wantImage)
			}
			if md.HasPrice != tt.hasPrice || md.Price != tt.wantPrice {
				t.Errorf("Price = %v (%v), want %v (%v)", md.Price, md.HasPrice, tt.wantPrice, tt.hasPrice)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{"https://shopee.com.br/produto-1", "http://example.com"}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) error = %v", u, err)
		}
	}
	invalid := []string{"", "shopee.com.br/x", "ftp://example.com/file", "https://"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) expected error", u)
		}
	}
}
