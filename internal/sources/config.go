package sources

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/powderline/quiver/internal/normalize"
	"github.com/powderline/quiver/pkg/catalog"
	"github.com/powderline/quiver/pkg/errors"
)

// Config describes one site as data. A retailer config carries listing
// pages plus tile selectors and optionally detail-page spec selectors; a
// manufacturer config carries spec pages plus spec selectors.
type Config struct {
	ID       string             `yaml:"id"`
	Kind     catalog.SourceKind `yaml:"kind"`
	Tier     catalog.Tier       `yaml:"tier"`
	Currency string             `yaml:"currency,omitempty"`
	Region   string             `yaml:"region,omitempty"`

	// Brand fixes the brand for sites that sell only their own boards.
	Brand string `yaml:"brand,omitempty"`

	ListingPages []string `yaml:"listing_pages,omitempty"`
	SpecPages    []string `yaml:"spec_pages,omitempty"`

	Listing ListingSelectors             `yaml:"listing,omitempty"`
	Detail  map[catalog.SpecField]string `yaml:"detail,omitempty"`
	Spec    SpecSelectors                `yaml:"spec,omitempty"`
}

// ListingSelectors are the CSS selectors for one product tile. Item
// selects the repeated tile element; the rest are evaluated inside it.
// Link names the element whose href is the product URL.
type ListingSelectors struct {
	Item         string `yaml:"item"`
	Brand        string `yaml:"brand,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Title        string `yaml:"title,omitempty"`
	Link         string `yaml:"link,omitempty"`
	Price        string `yaml:"price,omitempty"`
	SalePrice    string `yaml:"sale_price,omitempty"`
	Condition    string `yaml:"condition,omitempty"`
	Category     string `yaml:"category,omitempty"`
	Availability string `yaml:"availability,omitempty"`
}

// SpecSelectors are the CSS selectors for one spec row on a manufacturer
// page. Fields maps each spec field to its selector inside the item.
type SpecSelectors struct {
	Item     string                       `yaml:"item"`
	Brand    string                       `yaml:"brand,omitempty"`
	Model    string                       `yaml:"model,omitempty"`
	Category string                       `yaml:"category,omitempty"`
	Fields   map[catalog.SpecField]string `yaml:"fields,omitempty"`
}

// Locale returns the config's currency/region, falling back to the
// normalizer default.
func (c Config) Locale() normalize.Locale {
	if c.Currency == "" {
		return normalize.DefaultLocale
	}
	return normalize.Locale{Currency: c.Currency, Region: c.Region}
}

// Validate checks a config is complete enough to drive the adapter.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.NewValidationError("id", c.ID, "source id is required")
	}
	if !c.Tier.IsValid() {
		return errors.NewValidationError("tier", c.Tier.String(), "unknown source tier")
	}
	switch c.Kind {
	case catalog.KindRetailer:
		if len(c.ListingPages) == 0 {
			return errors.NewValidationError("listing_pages", nil, "retailer config needs listing pages")
		}
		if c.Listing.Item == "" {
			return errors.NewValidationError("listing.item", nil, "retailer config needs a tile selector")
		}
	case catalog.KindManufacturer:
		if len(c.SpecPages) == 0 {
			return errors.NewValidationError("spec_pages", nil, "manufacturer config needs spec pages")
		}
		if c.Spec.Item == "" || len(c.Spec.Fields) == 0 {
			return errors.NewValidationError("spec", nil, "manufacturer config needs spec selectors")
		}
	default:
		return errors.NewValidationError("kind", string(c.Kind), "unknown source kind")
	}
	return nil
}

// ParseConfigs decodes a YAML document holding a list of source configs
// and validates each.
func ParseConfigs(data []byte) ([]Config, error) {
	var configs []Config
	if err := yaml.Unmarshal(data, &configs); err != nil {
		return nil, errors.WrapParse("config", "", err)
	}
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

// LoadConfigs reads and parses a source config file.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapParse("config", path, err)
	}
	return ParseConfigs(data)
}
