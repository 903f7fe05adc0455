package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"

	"roulette/domain/entities"
	"roulette/domain/services"
)

// CategoryReport compares the drawn frequency of a category with the wheel
type CategoryReport struct {
	Category       entities.Category
	Sectors        int
	Multiplier     int64
	Probability    float64
	ExpectedReturn float64
	Hits           int
	ObservedRate   float64
	ObservedReturn float64
}

// WheelAnalysis is the result of drawing a wheel many times
type WheelAnalysis struct {
	Trials     int
	Categories []CategoryReport
	// SectorChiSquared tests the draw for uniformity across sectors
	SectorChiSquared float64
	DegreesOfFreedom int
}

// AnalyzeWheel draws the wheel trials times and reports the hit rate and
// return to player of a one unit wager on each category.
func AnalyzeWheel(wheel *entities.Wheel, trials int, rng services.Randomizer) (*WheelAnalysis, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}
	generator, err := services.NewOutcomeGenerator(wheel, rng)
	if err != nil {
		return nil, err
	}

	sectorHits := make([]int, len(wheel.Sectors))
	categoryHits := make(map[entities.Category]int)
	for i := 0; i < trials; i++ {
		outcome := generator.Draw()
		sectorHits[outcome.Index]++
		categoryHits[outcome.Category]++
	}

	sectorCounts := make(map[entities.Category]int)
	for _, sector := range wheel.Sectors {
		sectorCounts[sector.Category]++
	}

	analysis := &WheelAnalysis{
		Trials:           trials,
		DegreesOfFreedom: len(wheel.Sectors) - 1,
	}

	for _, category := range wheel.Categories() {
		probability := float64(sectorCounts[category]) / float64(len(wheel.Sectors))
		multiplier := wheel.Multiplier(category)
		observedRate := float64(categoryHits[category]) / float64(trials)

		analysis.Categories = append(analysis.Categories, CategoryReport{
			Category:       category,
			Sectors:        sectorCounts[category],
			Multiplier:     multiplier,
			Probability:    probability,
			ExpectedReturn: probability * float64(multiplier),
			Hits:           categoryHits[category],
			ObservedRate:   observedRate,
			ObservedReturn: observedRate * float64(multiplier),
		})
	}

	expectedPerSector := float64(trials) / float64(len(wheel.Sectors))
	for _, hits := range sectorHits {
		analysis.SectorChiSquared += math.Pow(float64(hits)-expectedPerSector, 2) / expectedPerSector
	}

	return analysis, nil
}

// PrintWheelAnalysis writes a human readable report
func PrintWheelAnalysis(w io.Writer, analysis *WheelAnalysis) {
	fmt.Fprintf(w, "=== Wheel Analysis (%d draws) ===\n\n", analysis.Trials)

	for _, report := range analysis.Categories {
		fmt.Fprintf(w, "%-8s sectors: %2d | x%-3d | P: %6.2f%% | observed: %6.2f%% | RTP: %6.2f%% (observed %6.2f%%) | house edge: %+.2f%%\n",
			strings.ToUpper(string(report.Category)),
			report.Sectors,
			report.Multiplier,
			report.Probability*100,
			report.ObservedRate*100,
			report.ExpectedReturn*100,
			report.ObservedReturn*100,
			(1-report.ExpectedReturn)*100,
		)
	}

	fmt.Fprintf(w, "\nχ² (sector uniformity): %.2f with %d df\n", analysis.SectorChiSquared, analysis.DegreesOfFreedom)
}
