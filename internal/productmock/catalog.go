// Package productmock serves a fake Product catalog backend for local runs
// and tests.
package productmock

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/and4010/apimanager/product"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (product.Response, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (product.Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return product.Response{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		return product.Response{}, fmt.Errorf("catalog %s: %w", path, err)
	}
	return catalog, nil
}

// ParseCatalog decodes a YAML catalog. Mart ids must be unique.
func ParseCatalog(data []byte) (product.Response, error) {
	var catalog product.Response
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return product.Response{}, fmt.Errorf("failed to parse catalog: %w", err)
	}

	seen := make(map[int]struct{}, len(catalog.Data))
	for _, m := range catalog.Data {
		if _, dup := seen[m.MartID]; dup {
			return product.Response{}, fmt.Errorf("duplicate martId %d", m.MartID)
		}
		seen[m.MartID] = struct{}{}
	}
	if catalog.Data == nil {
		catalog.Data = []product.Model{}
	}
	return catalog, nil
}
