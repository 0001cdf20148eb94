// Package shopconf reads and writes the catalog YAML file.
package shopconf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradepost/internal/market"
)

var ErrInvalidFile = errors.New("invalid catalog file")

type File struct {
	DynamicPricing *bool     `json:"dynamic_pricing,omitempty" yaml:"dynamic_pricing,omitempty"`
	Sections       []Section `json:"sections" yaml:"sections"`
}

type Section struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Economy string `json:"economy,omitempty" yaml:"economy,omitempty"`
	Access  string `json:"access,omitempty" yaml:"access,omitempty"`
	Dynamic bool   `json:"dynamic" yaml:"dynamic"`
	Items   []Item `json:"items" yaml:"items"`
}

type Item struct {
	ID           string                 `json:"id" yaml:"id"`
	Slot         int                    `json:"slot" yaml:"slot"`
	Goods        market.GoodsDescriptor `json:"goods" yaml:"goods"`
	Buy          string                 `json:"buy" yaml:"buy"`
	Sell         string                 `json:"sell,omitempty" yaml:"sell,omitempty"`
	MinPrice     string                 `json:"min_price,omitempty" yaml:"min_price,omitempty"`
	MaxPrice     string                 `json:"max_price,omitempty" yaml:"max_price,omitempty"`
	Stock        int64                  `json:"stock" yaml:"stock"`
	MaxStock     int64                  `json:"max_stock" yaml:"max_stock"`
	Dynamic      bool                   `json:"dynamic" yaml:"dynamic"`
	DailyLimit   int                    `json:"daily_limit,omitempty" yaml:"daily_limit,omitempty"`
	Economy      string                 `json:"economy,omitempty" yaml:"economy,omitempty"`
	Requirements *Requirements          `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

type Requirements struct {
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	MinLevel      int      `json:"min_level,omitempty" yaml:"min_level,omitempty"`
	MinExperience int      `json:"min_experience,omitempty" yaml:"min_experience,omitempty"`
	MinPlaytime   string   `json:"min_playtime,omitempty" yaml:"min_playtime,omitempty"`
}

func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return f, nil
}

// Save writes f next to path and renames it into place.
func Save(path string, f File) error {
	raw, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".catalog-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Apply adds every section and item of f to cat.
func Apply(cat *market.Catalog, f File, resolver market.GoodResolver) error {
	if f.DynamicPricing != nil {
		cat.SetDynamicPricing(*f.DynamicPricing)
	}
	for _, s := range f.Sections {
		sec := market.NewSection(market.SectionSpec{
			ID:      s.ID,
			Name:    s.Name,
			Economy: s.Economy,
			Access:  s.Access,
			Dynamic: s.Dynamic,
		})
		if err := cat.AddSection(sec); err != nil {
			return err
		}
		for _, in := range s.Items {
			spec, err := in.Spec()
			if err != nil {
				return err
			}
			it, err := market.NewItem(spec, resolver)
			if err != nil {
				return err
			}
			if err := cat.AddItem(sec.ID(), it); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reload rebuilds cat from the file at path, then reloads persisted stock.
// cat is left as it was when the file cannot be read or applied.
func Reload(ctx context.Context, cat *market.Catalog, path string, resolver market.GoodResolver, store market.Persistence) error {
	f, err := Load(path)
	if err != nil {
		return err
	}
	next := market.NewCatalog(cat.DynamicPricing(), nil)
	if err := Apply(next, f, resolver); err != nil {
		return err
	}
	cat.Replace(next)
	if store != nil {
		// per-item failures are logged and keep the file's stock
		_ = cat.Hydrate(ctx, store)
	}
	return nil
}

// Snapshot captures the current catalog, live stock included.
func Snapshot(cat *market.Catalog) File {
	dyn := cat.DynamicPricing()
	f := File{DynamicPricing: &dyn}
	for _, sec := range cat.Sections() {
		spec := sec.Spec()
		out := Section{
			ID:      spec.ID,
			Name:    spec.Name,
			Economy: spec.Economy,
			Access:  spec.Access,
			Dynamic: spec.Dynamic,
		}
		for _, it := range sec.Items() {
			out.Items = append(out.Items, FromSpec(it.Spec()))
		}
		f.Sections = append(f.Sections, out)
	}
	return f
}

func (i Item) Spec() (market.ItemSpec, error) {
	spec := market.ItemSpec{
		ID:         i.ID,
		Slot:       i.Slot,
		Goods:      i.Goods,
		Stock:      i.Stock,
		MaxStock:   i.MaxStock,
		Dynamic:    i.Dynamic,
		DailyLimit: i.DailyLimit,
		Economy:    i.Economy,
	}
	var err error
	if spec.BuyPrice, err = price(i.ID, "buy", i.Buy); err != nil {
		return spec, err
	}
	if spec.SellPrice, err = price(i.ID, "sell", i.Sell); err != nil {
		return spec, err
	}
	if spec.MinPrice, err = price(i.ID, "min_price", i.MinPrice); err != nil {
		return spec, err
	}
	if spec.MaxPrice, err = price(i.ID, "max_price", i.MaxPrice); err != nil {
		return spec, err
	}
	if strings.TrimSpace(i.MaxPrice) == "" {
		// scarcity at most doubles a price
		spec.MaxPrice = decimal.Max(spec.BuyPrice, spec.SellPrice).Mul(decimal.NewFromInt(2))
	}
	if i.Requirements != nil {
		r := i.Requirements
		spec.Requirements = market.Requirements{
			Tags:          r.Tags,
			MinLevel:      r.MinLevel,
			MinExperience: r.MinExperience,
		}
		if strings.TrimSpace(r.MinPlaytime) != "" {
			d, err := time.ParseDuration(r.MinPlaytime)
			if err != nil {
				return spec, fmt.Errorf("%w: %s min_playtime: %v", ErrInvalidFile, i.ID, err)
			}
			spec.Requirements.MinPlaytime = d
		}
	}
	return spec, nil
}

func FromSpec(s market.ItemSpec) Item {
	out := Item{
		ID:         s.ID,
		Slot:       s.Slot,
		Goods:      s.Goods,
		Buy:        s.BuyPrice.String(),
		Stock:      s.Stock,
		MaxStock:   s.MaxStock,
		Dynamic:    s.Dynamic,
		DailyLimit: s.DailyLimit,
		Economy:    s.Economy,
	}
	if !s.SellPrice.IsZero() {
		out.Sell = s.SellPrice.String()
	}
	if !s.MinPrice.IsZero() {
		out.MinPrice = s.MinPrice.String()
	}
	if !s.MaxPrice.IsZero() {
		out.MaxPrice = s.MaxPrice.String()
	}
	if !s.Requirements.Empty() {
		r := &Requirements{
			Tags:          s.Requirements.Tags,
			MinLevel:      s.Requirements.MinLevel,
			MinExperience: s.Requirements.MinExperience,
		}
		if s.Requirements.MinPlaytime > 0 {
			r.MinPlaytime = s.Requirements.MinPlaytime.String()
		}
		out.Requirements = r
	}
	return out
}

func price(id, field, v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %s: %v", ErrInvalidFile, id, field, err)
	}
	return d, nil
}
