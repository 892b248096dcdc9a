// Command validate performs end-to-end integrity checks on a generated guide
// directory: structural completeness, occurrence-rate arithmetic, ranking
// order, and cross-file consistency between guide files, indexes, and run
// metadata.
//
// Usage:
//
//	go run ./cmd/validate -guide-dir output \
//	  -min-checklists 10 -medium-min 30 -high-min 100
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aingebritson/ebird-hotspot-guide/internal/output"
)

// Rates in the output are rounded to four decimals, so reconstruction checks
// allow half a unit in the last place.
const rateTolerance = 0.00005

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// guide is everything loaded from one output directory.
type guide struct {
	species      map[string]*output.SpeciesFile // keyed by file path relative to the guide dir
	hotspots     map[string]*output.HotspotFile
	speciesIndex output.SpeciesIndex
	hotspotIndex output.HotspotIndex
	metadata     output.Metadata
}

// thresholds mirror the generator settings the guide was produced with.
type thresholds struct {
	minChecklists int
	mediumMin     int
	highMin       int
}

func main() {
	guideDir := flag.String("guide-dir", "", "generated guide directory to validate")
	minChecklists := flag.Int("min-checklists", 10, "minimum checklists the generator required per hotspot")
	mediumMin := flag.Int("medium-min", 30, "checklists required for medium confidence")
	highMin := flag.Int("high-min", 100, "checklists required for high confidence")
	flag.Parse()

	if *guideDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	th := thresholds{minChecklists: *minChecklists, mediumMin: *mediumMin, highMin: *highMin}
	if code := run(*guideDir, th); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, th thresholds) int {
	fmt.Println("=== Hotspot Guide Integrity Validation ===")
	fmt.Println()

	g, err := loadGuide(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load guide: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStructure(g),
		validateRates(g, th),
		validateRanking(g),
		validateConsistency(g),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Files: %d species, %d hotspots, 2 indexes, 1 metadata\n",
		len(g.species), len(g.hotspots))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Loading ──

func loadGuide(dir string) (*guide, error) {
	g := &guide{
		species:  make(map[string]*output.SpeciesFile),
		hotspots: make(map[string]*output.HotspotFile),
	}

	if err := loadJSON(filepath.Join(dir, "metadata.json"), &g.metadata); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, "index", "species_index.json"), &g.speciesIndex); err != nil {
		return nil, err
	}
	if err := loadJSON(filepath.Join(dir, "index", "hotspot_index.json"), &g.hotspotIndex); err != nil {
		return nil, err
	}

	// Guide files are discovered through the indexes; the structure phase
	// flags anything on disk the indexes do not reference.
	for _, e := range g.speciesIndex.Species {
		var f output.SpeciesFile
		if err := loadJSON(filepath.Join(dir, filepath.FromSlash(e.File)), &f); err != nil {
			return nil, err
		}
		g.species[e.File] = &f
	}
	for _, e := range g.hotspotIndex.Hotspots {
		var f output.HotspotFile
		if err := loadJSON(filepath.Join(dir, filepath.FromSlash(e.File)), &f); err != nil {
			return nil, err
		}
		g.hotspots[e.File] = &f
	}
	return g, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ── Phase 1: Structure ──
// Every file carries the required fields, month and season keys are complete,
// and enums hold only their allowed values.

var validConfidences = map[string]bool{"high": true, "medium": true, "low": true}

func validateStructure(g *guide) *phase {
	p := &phase{name: "Phase 1: Structure (files and fields)"}

	for file, f := range g.species {
		if f.Species.CommonName == "" {
			p.errorf("%s: species.common_name is empty", file)
		}
		if f.Species.ScientificName == "" {
			p.errorf("%s: species.scientific_name is empty", file)
		}
		if len(f.Hotspots) == 0 {
			p.errorf("%s: no hotspot entries", file)
		}
		if f.Metadata.GeneratedAt.IsZero() {
			p.errorf("%s: metadata.generated_at is zero", file)
		}
		for _, h := range f.Hotspots {
			if h.LocalityID == "" {
				p.errorf("%s rank %d: locality_id is empty", file, h.Rank)
			}
			checkOccurrenceShape(p, fmt.Sprintf("%s rank %d", file, h.Rank), h.Occurrence, h.Monthly, h.Seasonal)
		}
	}

	for file, f := range g.hotspots {
		if f.Hotspot.LocalityID == "" {
			p.errorf("%s: hotspot.locality_id is empty", file)
		}
		if !validConfidences[f.Hotspot.Confidence] {
			p.errorf("%s: confidence %q not in {high, medium, low}", file, f.Hotspot.Confidence)
		}
		if len(f.Species) == 0 {
			p.errorf("%s: no species entries", file)
		}
		for _, s := range f.Species {
			checkOccurrenceShape(p, fmt.Sprintf("%s rank %d", file, s.Rank), s.Occurrence, s.Monthly, s.Seasonal)
		}
	}
	return p
}

func checkOccurrenceShape(p *phase, at string, o output.Occurrence, monthly, seasonal map[string]float64) {
	if !validConfidences[o.Confidence] {
		p.errorf("%s: confidence %q not in {high, medium, low}", at, o.Confidence)
	}
	if len(monthly) != 12 {
		p.errorf("%s: monthly has %d keys, want 12", at, len(monthly))
	}
	for m := 1; m <= 12; m++ {
		if _, ok := monthly[strconv.Itoa(m)]; !ok {
			p.errorf("%s: monthly missing key %q", at, strconv.Itoa(m))
		}
	}
	for _, season := range []string{"spring", "summer", "fall", "winter"} {
		if _, ok := seasonal[season]; !ok {
			p.errorf("%s: seasonal missing key %q", at, season)
		}
	}
	if len(seasonal) != 4 {
		p.errorf("%s: seasonal has %d keys, want 4", at, len(seasonal))
	}
}

// ── Phase 2: Rate arithmetic ──
// Rates lie in [0,1], match detections over checklists, and every hotspot
// clears the generator's inclusion and confidence thresholds.

func validateRates(g *guide, th thresholds) *phase {
	p := &phase{name: "Phase 2: Rate Arithmetic"}

	for file, f := range g.species {
		for _, h := range f.Hotspots {
			checkOccurrenceMath(p, fmt.Sprintf("%s %s", file, h.LocalityID), h.Occurrence, h.Monthly, h.Seasonal, th)
		}
	}
	for file, f := range g.hotspots {
		for _, s := range f.Species {
			checkOccurrenceMath(p, fmt.Sprintf("%s %s", file, s.Species.CommonName), s.Occurrence, s.Monthly, s.Seasonal, th)
		}
	}
	return p
}

func checkOccurrenceMath(p *phase, at string, o output.Occurrence, monthly, seasonal map[string]float64, th thresholds) {
	if o.Rate < 0 || o.Rate > 1 {
		p.errorf("%s: rate %g outside [0,1]", at, o.Rate)
	}
	if o.DetectionCount > o.TotalChecklists {
		p.errorf("%s: %d detections exceed %d checklists", at, o.DetectionCount, o.TotalChecklists)
	}
	if o.TotalChecklists < th.minChecklists {
		p.errorf("%s: %d checklists below inclusion minimum %d", at, o.TotalChecklists, th.minChecklists)
	}

	want := float64(o.DetectionCount) / float64(o.TotalChecklists)
	if math.Abs(o.Rate-want) > rateTolerance {
		p.errorf("%s: rate %g does not match %d/%d", at, o.Rate, o.DetectionCount, o.TotalChecklists)
	}

	wantConf := "low"
	switch {
	case o.TotalChecklists >= th.highMin:
		wantConf = "high"
	case o.TotalChecklists >= th.mediumMin:
		wantConf = "medium"
	}
	if o.Confidence != wantConf {
		p.errorf("%s: confidence %q for %d checklists, want %q", at, o.Confidence, o.TotalChecklists, wantConf)
	}

	// Monthly and seasonal rates share the whole-period denominator, so each
	// breakdown must reconstruct the overall detection count.
	checkBreakdown(p, at, "monthly", monthly, o)
	checkBreakdown(p, at, "seasonal", seasonal, o)
}

func checkBreakdown(p *phase, at, name string, rates map[string]float64, o output.Occurrence) {
	sum := 0.0
	for key, r := range rates {
		if r < 0 || r > 1 {
			p.errorf("%s: %s[%s] rate %g outside [0,1]", at, name, key, r)
		}
		sum += r
	}
	want := float64(o.DetectionCount) / float64(o.TotalChecklists)
	if math.Abs(sum-want) > rateTolerance*float64(len(rates)) {
		p.errorf("%s: %s rates sum to %g, want %g", at, name, sum, want)
	}
}

// ── Phase 3: Ranking ──
// Ranks are strictly ordinal from 1, rates never increase down a list, and
// rate ties are broken by ascending locality ID.

func validateRanking(g *guide) *phase {
	p := &phase{name: "Phase 3: Ranking Order"}

	for file, f := range g.species {
		for i, h := range f.Hotspots {
			if h.Rank != i+1 {
				p.errorf("%s: entry %d has rank %d", file, i, h.Rank)
			}
			if i == 0 {
				continue
			}
			prev := f.Hotspots[i-1]
			if h.Occurrence.Rate > prev.Occurrence.Rate {
				p.errorf("%s: rank %d rate %g exceeds rank %d rate %g", file, h.Rank, h.Occurrence.Rate, prev.Rank, prev.Occurrence.Rate)
			}
			if h.Occurrence.Rate == prev.Occurrence.Rate && h.LocalityID < prev.LocalityID {
				p.errorf("%s: tie at rate %g not broken by locality ID (%s before %s)", file, h.Occurrence.Rate, prev.LocalityID, h.LocalityID)
			}
		}
	}

	for file, f := range g.hotspots {
		for i, s := range f.Species {
			if s.Rank != i+1 {
				p.errorf("%s: entry %d has rank %d", file, i, s.Rank)
			}
			if i > 0 && s.Occurrence.Rate > f.Species[i-1].Occurrence.Rate {
				p.errorf("%s: rank %d rate %g exceeds rank %d", file, s.Rank, s.Occurrence.Rate, s.Rank-1)
			}
		}
	}
	return p
}

// ── Phase 4: Cross-file consistency ──
// Indexes, guide files, and metadata all agree with each other.

func validateConsistency(g *guide) *phase {
	p := &phase{name: "Phase 4: Cross-file Consistency"}

	if g.metadata.TotalSpecies != len(g.species) {
		p.errorf("metadata total_species %d, but %d species files", g.metadata.TotalSpecies, len(g.species))
	}
	if g.metadata.TotalHotspots != len(g.hotspots) {
		p.errorf("metadata total_hotspots %d, but %d hotspot files", g.metadata.TotalHotspots, len(g.hotspots))
	}
	if g.speciesIndex.TotalSpecies != len(g.speciesIndex.Species) {
		p.errorf("species index total_species %d, but %d entries", g.speciesIndex.TotalSpecies, len(g.speciesIndex.Species))
	}
	if g.hotspotIndex.TotalHotspots != len(g.hotspotIndex.Hotspots) {
		p.errorf("hotspot index total_hotspots %d, but %d entries", g.hotspotIndex.TotalHotspots, len(g.hotspotIndex.Hotspots))
	}

	for _, e := range g.speciesIndex.Species {
		f, ok := g.species[e.File]
		if !ok {
			continue
		}
		if f.Species != e.Species {
			p.errorf("%s: index names %s but file holds %s", e.File, e.Species.CommonName, f.Species.CommonName)
		}
		if e.TotalHotspotsDetected != len(f.Hotspots) {
			p.errorf("%s: index counts %d hotspots, file holds %d", e.File, e.TotalHotspotsDetected, len(f.Hotspots))
		}
		if len(f.Hotspots) > 0 && !floatEq(e.HighestOccurrenceRate, f.Hotspots[0].Occurrence.Rate) {
			p.errorf("%s: index highest rate %g, file rank 1 rate %g", e.File, e.HighestOccurrenceRate, f.Hotspots[0].Occurrence.Rate)
		}
		if len(e.TopHotspots) > len(f.Hotspots) {
			p.errorf("%s: index lists %d top hotspots, file holds %d", e.File, len(e.TopHotspots), len(f.Hotspots))
		}
		for i, top := range e.TopHotspots {
			if i < len(f.Hotspots) && top.LocalityID != f.Hotspots[i].LocalityID {
				p.errorf("%s: index top hotspot %d is %s, file has %s", e.File, i+1, top.LocalityID, f.Hotspots[i].LocalityID)
			}
		}
	}

	for _, e := range g.hotspotIndex.Hotspots {
		f, ok := g.hotspots[e.File]
		if !ok {
			continue
		}
		if f.Hotspot.LocalityID != e.LocalityID {
			p.errorf("%s: index names %s but file holds %s", e.File, e.LocalityID, f.Hotspot.LocalityID)
		}
		if e.SpeciesDetected != len(f.Species) {
			p.errorf("%s: index counts %d species, file holds %d", e.File, e.SpeciesDetected, len(f.Species))
		}
		if e.TotalChecklists != f.Hotspot.TotalChecklists {
			p.errorf("%s: index total_checklists %d, file %d", e.File, e.TotalChecklists, f.Hotspot.TotalChecklists)
		}
	}

	checkCrossReferences(p, g)
	return p
}

// checkCrossReferences verifies that each species/hotspot pairing appears in
// both views with identical numbers.
func checkCrossReferences(p *phase, g *guide) {
	type pairing struct {
		species  output.SpeciesInfo
		locality string
	}

	fromSpecies := make(map[pairing]output.Occurrence)
	for _, f := range g.species {
		for _, h := range f.Hotspots {
			fromSpecies[pairing{species: f.Species, locality: h.LocalityID}] = h.Occurrence
		}
	}

	seen := 0
	for file, f := range g.hotspots {
		for _, s := range f.Species {
			key := pairing{species: s.Species, locality: f.Hotspot.LocalityID}
			o, ok := fromSpecies[key]
			if !ok {
				p.errorf("%s: %s missing from its species file", file, s.Species.CommonName)
				continue
			}
			seen++
			if o.DetectionCount != s.Occurrence.DetectionCount || !floatEq(o.Rate, s.Occurrence.Rate) {
				p.errorf("%s: %s disagrees with species file (%d/%g vs %d/%g)",
					file, s.Species.CommonName,
					s.Occurrence.DetectionCount, s.Occurrence.Rate,
					o.DetectionCount, o.Rate)
			}
		}
	}
	if seen != len(fromSpecies) {
		p.errorf("species files hold %d pairings, hotspot files hold %d", len(fromSpecies), seen)
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
