// Package catalog loads the read-only category catalog.
//
// Transactions store a bare subcategory id; the catalog maps those ids back
// to names for display. It is loaded once from a YAML file and never written
// by this program.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Subcategory is a leaf the user assigns transactions to.
type Subcategory struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Category groups subcategories for display.
type Category struct {
	ID            int64         `yaml:"id"`
	Name          string        `yaml:"name"`
	Subcategories []Subcategory `yaml:"subcategories"`
}

// Catalog is an immutable in-memory view of the category file.
type Catalog struct {
	categories []Category
	bySubID    map[int64]lookup
}

type lookup struct {
	sub Subcategory
	cat Category
}

type catalogFile struct {
	Categories []Category `yaml:"categories"`
}

// Load reads and indexes the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse indexes raw catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		categories: file.Categories,
		bySubID:    make(map[int64]lookup),
	}
	for _, cat := range file.Categories {
		for _, sub := range cat.Subcategories {
			if _, dup := c.bySubID[sub.ID]; dup {
				return nil, fmt.Errorf("duplicate subcategory id %d in catalog", sub.ID)
			}
			c.bySubID[sub.ID] = lookup{sub: sub, cat: cat}
		}
	}
	return c, nil
}

// Categories returns all categories sorted by name.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subcategory resolves a subcategory id to its leaf and parent category.
func (c *Catalog) Subcategory(id int64) (Subcategory, Category, bool) {
	l, ok := c.bySubID[id]
	return l.sub, l.cat, ok
}

// Label formats a subcategory id for display, e.g. "Food / Groceries".
// Unknown ids fall back to the raw number so old data always renders.
func (c *Catalog) Label(id int64) string {
	l, ok := c.bySubID[id]
	if !ok {
		return fmt.Sprintf("#%d", id)
	}
	return l.cat.Name + " / " + l.sub.Name
}
