// Package product is the Product catalog API and a repository holding the
// last loaded catalog.
package product

import "github.com/and4010/apimanager"

// DefaultURL is the production catalog endpoint.
const DefaultURL = "https://m.senao.com.tw/apis2/test/marttest.jsp"

// Identity is the registry identity shared by every Product call.
const Identity apimanager.Identity = "Product"

// API is the catalog listing endpoint. It takes no payload.
type API struct {
	// URL overrides DefaultURL. A relative URL resolves against the client's
	// base URL.
	URL string
}

func (a API) Identity() apimanager.Identity { return Identity }

func (a API) Path() string {
	if a.URL != "" {
		return a.URL
	}
	return DefaultURL
}

func (a API) ContentKind() apimanager.ContentKind { return apimanager.ContentEmpty }

// Response is the catalog listing body.
type Response struct {
	Data []Model `json:"data" yaml:"data"`
}

// Model is one product as sent by the backend.
type Model struct {
	Price          int    `json:"price" yaml:"price"`
	MartShortName  string `json:"martShortName" yaml:"martShortName"`
	ImageURL       string `json:"imageUrl" yaml:"imageUrl"`
	FinalPrice     int    `json:"finalPrice" yaml:"finalPrice"`
	MartName       string `json:"martName" yaml:"martName"`
	StockAvailable int    `json:"stockAvailable" yaml:"stockAvailable"`
	MartID         int    `json:"martId" yaml:"martId"`
}

// Item is the application's view of a product.
type Item struct {
	Price          int
	MartShortName  string
	ImageURL       string
	FinalPrice     int
	MartName       string
	StockAvailable int
	MartID         int
}

// ToItem converts m to an Item.
func (m Model) ToItem() Item {
	return Item{
		Price:          m.Price,
		MartShortName:  m.MartShortName,
		ImageURL:       m.ImageURL,
		FinalPrice:     m.FinalPrice,
		MartName:       m.MartName,
		StockAvailable: m.StockAvailable,
		MartID:         m.MartID,
	}
}

// InStock reports whether any stock is left.
func (i Item) InStock() bool {
	return i.StockAvailable > 0
}

// Discounted reports whether the final price is below the list price.
func (i Item) Discounted() bool {
	return i.FinalPrice < i.Price
}
