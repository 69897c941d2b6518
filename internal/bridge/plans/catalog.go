// Package plans holds the fixed credit table. Grants are looked up here and
// never derived from payment amounts.
package plans

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	ErrUnknownPlan      = errors.New("plans: unknown plan")
	ErrUnknownFrequency = errors.New("plans: unknown billing frequency")
	ErrNotSeatPlan      = errors.New("plans: plan has no seat grant")
)

// FallbackPlan is the personal plan used when an account's own plan is not in
// the catalog.
const FallbackPlan = "starter"

type Plan struct {
	// Personal plans can be held without an organization seat.
	Personal bool `yaml:"personal"`

	// BaselineCredits is the balance a personal plan restores to when an
	// organization seat ends.
	BaselineCredits int64 `yaml:"baselineCredits"`

	// SeatBaseCredits is the per-seat grant for a monthly seat.
	SeatBaseCredits int64 `yaml:"seatBaseCredits"`
}

type Catalog struct {
	Frequencies map[string]int64 `yaml:"frequencies"`
	Plans       map[string]Plan  `yaml:"plans"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("plans: embedded catalog is invalid: %v", err))
	}
	return c
}

// LoadFile reads a catalog from path, or returns Default when path is empty.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plans: open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a YAML catalog.
func Load(r io.Reader) (*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("plans: read catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("plans: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the catalog is usable.
func (c *Catalog) Validate() error {
	fallback, ok := c.Plans[FallbackPlan]
	if !ok || !fallback.Personal {
		return fmt.Errorf("plans: catalog must define personal plan %q", FallbackPlan)
	}
	for name, m := range c.Frequencies {
		if m <= 0 {
			return fmt.Errorf("plans: frequency %q must have a positive multiplier", name)
		}
	}
	for name, p := range c.Plans {
		if p.BaselineCredits < 0 || p.SeatBaseCredits < 0 {
			return fmt.Errorf("plans: plan %q has negative credits", name)
		}
		if !p.Personal && p.SeatBaseCredits == 0 {
			return fmt.Errorf("plans: plan %q is neither personal nor seat based", name)
		}
	}
	return nil
}

// SeatCredits is the one-off grant for a seat on plan billed at frequency.
func (c *Catalog) SeatCredits(plan, frequency string) (int64, error) {
	p, ok := c.Plans[plan]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	if p.SeatBaseCredits == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotSeatPlan, plan)
	}
	m, ok := c.Frequencies[frequency]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFrequency, frequency)
	}
	return p.SeatBaseCredits * m, nil
}

// Baseline is the credit floor for a personal plan. Unknown or non-personal
// plans fall back to the starter baseline.
func (c *Catalog) Baseline(personalPlan string) (plan string, credits int64) {
	if p, ok := c.Plans[personalPlan]; ok && p.Personal {
		return personalPlan, p.BaselineCredits
	}
	return FallbackPlan, c.Plans[FallbackPlan].BaselineCredits
}

// IsSeatPlan reports whether plan can back an organization subscription.
func (c *Catalog) IsSeatPlan(plan string) bool {
	p, ok := c.Plans[plan]
	return ok && p.SeatBaseCredits > 0
}

// ValidFrequency reports whether frequency has a multiplier.
func (c *Catalog) ValidFrequency(frequency string) bool {
	_, ok := c.Frequencies[frequency]
	return ok
}
