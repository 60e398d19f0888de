// Package catalog is the read-only business data source: restaurants,
// categories, and menus. The rest of the library consumes it through
// the Catalog interface and never mutates it.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quickplate/storefront/core"
)

// Category is a browsing category (cuisine, meal type)
type Category struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Emoji string `yaml:"emoji,omitempty" json:"emoji,omitempty"`
}

// MenuItem is one orderable dish
type MenuItem struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
	PriceInCents int64  `yaml:"price_in_cents" json:"priceInCents"`
	Category     string `yaml:"category,omitempty" json:"category,omitempty"`
	Emoji        string `yaml:"emoji,omitempty" json:"emoji,omitempty"`
	Veg          bool   `yaml:"veg,omitempty" json:"veg,omitempty"`
}

// Restaurant is a browsable venue with its menu
type Restaurant struct {
	ID          int64      `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	CuisineType string     `yaml:"cuisine_type,omitempty" json:"cuisineType,omitempty"`
	Rating      float64    `yaml:"rating,omitempty" json:"rating,omitempty"`
	DeliveryMin int        `yaml:"delivery_min,omitempty" json:"deliveryMin,omitempty"`
	Emoji       string     `yaml:"emoji,omitempty" json:"emoji,omitempty"`
	Categories  []string   `yaml:"categories,omitempty" json:"categories,omitempty"`
	Menu        []MenuItem `yaml:"menu" json:"menu"`
}

// Catalog is the read surface the presentation layer browses
type Catalog interface {
	Restaurants() []Restaurant
	Categories() []Category
	Restaurant(id int64) (*Restaurant, bool)
	Menu(restaurantID int64) []MenuItem
}

// fixtureFile is the YAML document shape
type fixtureFile struct {
	Categories  []Category   `yaml:"categories"`
	Restaurants []Restaurant `yaml:"restaurants"`
}

// StaticCatalog serves fixture data loaded once at construction
type StaticCatalog struct {
	categories  []Category
	restaurants []Restaurant
	byID        map[int64]*Restaurant
}

// NewStaticCatalog builds a catalog from already-parsed fixtures
func NewStaticCatalog(categories []Category, restaurants []Restaurant) *StaticCatalog {
	c := &StaticCatalog{
		categories:  categories,
		restaurants: restaurants,
		byID:        make(map[int64]*Restaurant, len(restaurants)),
	}
	for i := range c.restaurants {
		c.byID[c.restaurants[i].ID] = &c.restaurants[i]
	}
	return c
}

// LoadYAML parses a catalog fixture document
func LoadYAML(data []byte) (*StaticCatalog, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: failed to parse fixtures: %w", err)
	}
	if len(f.Restaurants) == 0 {
		return nil, fmt.Errorf("catalog: fixtures contain no restaurants: %w", core.ErrInvalidConfiguration)
	}
	return NewStaticCatalog(f.Categories, f.Restaurants), nil
}

// LoadFile reads and parses a catalog fixture file
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read %s: %w", path, err)
	}
	return LoadYAML(data)
}

// Restaurants returns all restaurants
func (c *StaticCatalog) Restaurants() []Restaurant {
	out := make([]Restaurant, len(c.restaurants))
	copy(out, c.restaurants)
	return out
}

// Categories returns all browsing categories
func (c *StaticCatalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Restaurant looks up a restaurant by id
func (c *StaticCatalog) Restaurant(id int64) (*Restaurant, bool) {
	r, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	out := *r
	return &out, true
}

// Menu returns the menu for a restaurant, or nil if unknown
func (c *StaticCatalog) Menu(restaurantID int64) []MenuItem {
	r, ok := c.byID[restaurantID]
	if !ok {
		return nil
	}
	out := make([]MenuItem, len(r.Menu))
	copy(out, r.Menu)
	return out
}
