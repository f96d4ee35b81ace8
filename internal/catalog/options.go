package catalog

import (
	"sort"
	"strings"
)

// VariantSummary describes one variant in terms of its named options.
type VariantSummary struct {
	Title     string
	Price     float64
	Inventory int
	InStock   bool
	Selection map[string]string
}

// OptionSet is the option view of a product: every option name with its
// distinct sorted values and every variant's selection.
type OptionSet struct {
	Names    []string
	Values   map[string][]string
	Variants []VariantSummary
}

// Has reports whether the product declares an option whose name contains key.
func (o OptionSet) Has(key string) (string, bool) {
	key = strings.ToLower(key)
	for _, name := range o.Names {
		if strings.Contains(strings.ToLower(name), key) {
			return name, true
		}
	}
	return "", false
}

// ExtractOptions maps the product's option names onto variant option slots.
func ExtractOptions(p *Product) OptionSet {
	set := OptionSet{Values: make(map[string][]string)}
	if p == nil {
		return set
	}

	slots := make(map[int]string, len(p.Options))
	seen := make(map[string]map[string]struct{}, len(p.Options))
	for i, opt := range p.Options {
		name := strings.TrimSpace(opt.Name)
		if name == "" {
			continue
		}
		pos := opt.Position
		if pos < 1 || pos > 3 {
			pos = i + 1
		}
		slots[pos] = name
		if _, ok := seen[name]; !ok {
			set.Names = append(set.Names, name)
			seen[name] = make(map[string]struct{})
		}
		for _, v := range opt.Values {
			if v = strings.TrimSpace(v); v != "" {
				seen[name][v] = struct{}{}
			}
		}
	}

	for _, v := range p.Variants {
		summary := VariantSummary{
			Title:     v.Title,
			Price:     v.Price.Float(),
			Inventory: v.Inventory,
			InStock:   v.Inventory > 0,
			Selection: make(map[string]string),
		}
		for pos, value := range []string{v.Option1, v.Option2, v.Option3} {
			name, ok := slots[pos+1]
			value = strings.TrimSpace(value)
			if !ok || value == "" {
				continue
			}
			summary.Selection[name] = value
			seen[name][value] = struct{}{}
		}
		set.Variants = append(set.Variants, summary)
	}

	for name, values := range seen {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		set.Values[name] = list
	}
	return set
}
