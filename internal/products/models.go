package products

import "github.com/shopspring/decimal"

// Product is a catalog entry. ImgSrc is either an absolute URL or a media public id.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImgSrc      string          `json:"imgSrc"`
}

// CatalogEntry is one product in a seed catalog file.
type CatalogEntry struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	ImgSrc      string `yaml:"imgSrc"`
}

type Catalog struct {
	Products []CatalogEntry `yaml:"products"`
}
