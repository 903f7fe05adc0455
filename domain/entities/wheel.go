package entities

import (
	"errors"
	"fmt"
	"sort"
)

// Category is the outcome classification a wager targets
type Category string

const (
	CategoryRed   Category = "red"
	CategoryBlack Category = "black"
	CategoryGreen Category = "green"
)

// Sector is one slot of the wheel
type Sector struct {
	Number   int      `json:"number"`
	Category Category `json:"category"`
}

// Wheel is the ordered outcome set together with the payout table.
// Draw frequency follows the sector list; payouts follow Multipliers.
type Wheel struct {
	Sectors     []Sector           `json:"sectors"`
	Multipliers map[Category]int64 `json:"multipliers"`
}

// DefaultWheel returns the 15 sector wheel: 0 is green, odd numbers are
// red and even numbers are black.
func DefaultWheel() *Wheel {
	sectors := make([]Sector, 15)
	for i := range sectors {
		category := CategoryBlack
		switch {
		case i == 0:
			category = CategoryGreen
		case i%2 == 1:
			category = CategoryRed
		}
		sectors[i] = Sector{Number: i, Category: category}
	}

	return &Wheel{
		Sectors: sectors,
		Multipliers: map[Category]int64{
			CategoryRed:   2,
			CategoryBlack: 2,
			CategoryGreen: 14,
		},
	}
}

// Validate checks that the wheel can be drawn from and paid out
func (w *Wheel) Validate() error {
	if len(w.Sectors) == 0 {
		return errors.New("wheel has no sectors")
	}

	seen := make(map[Category]bool)
	for _, sector := range w.Sectors {
		if sector.Category == "" {
			return fmt.Errorf("sector %d has no category", sector.Number)
		}
		multiplier, ok := w.Multipliers[sector.Category]
		if !ok {
			return fmt.Errorf("category %q has no multiplier", sector.Category)
		}
		if multiplier < 1 {
			return fmt.Errorf("category %q multiplier must be at least 1, got %d", sector.Category, multiplier)
		}
		seen[sector.Category] = true
	}

	for category := range w.Multipliers {
		if !seen[category] {
			return fmt.Errorf("multiplier configured for category %q which is not on the wheel", category)
		}
	}

	return nil
}

// HasCategory reports whether at least one sector carries the category
func (w *Wheel) HasCategory(category Category) bool {
	for _, sector := range w.Sectors {
		if sector.Category == category {
			return true
		}
	}
	return false
}

// Multiplier returns the payout factor for a category, 0 when unknown
func (w *Wheel) Multiplier(category Category) int64 {
	return w.Multipliers[category]
}

// MaxMultiplier returns the largest payout factor on the wheel
func (w *Wheel) MaxMultiplier() int64 {
	var top int64
	for _, multiplier := range w.Multipliers {
		if multiplier > top {
			top = multiplier
		}
	}
	return top
}

// Categories returns the distinct categories on the wheel in sorted order
func (w *Wheel) Categories() []Category {
	set := make(map[Category]struct{})
	for _, sector := range w.Sectors {
		set[sector.Category] = struct{}{}
	}

	categories := make([]Category, 0, len(set))
	for category := range set {
		categories = append(categories, category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories
}

// Sector returns the sector at a drawn index
func (w *Wheel) Sector(index int) (Sector, error) {
	if index < 0 || index >= len(w.Sectors) {
		return Sector{}, fmt.Errorf("sector index %d out of range [0,%d)", index, len(w.Sectors))
	}
	return w.Sectors[index], nil
}
