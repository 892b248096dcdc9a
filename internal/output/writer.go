// Package output serializes a finished GuideSet to the JSON directory layout
// consumed by the site: per-species files, per-hotspot files, index files,
// and run metadata.
//
// The whole directory is written atomically: everything lands in a temp
// directory first, which is renamed into place only after every file has been
// written. A failed run never leaves a half-written output directory behind.
package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aingebritson/ebird-hotspot-guide/internal/occurrence"
	"github.com/aingebritson/ebird-hotspot-guide/internal/pipeline"
)

// Rates are rounded to four decimal places at serialization only; internal
// computation stays exact.
const rateDecimals = 4

// SpeciesFile is the full guide for one species.
type SpeciesFile struct {
	Species  SpeciesInfo    `json:"species"`
	Summary  SpeciesSummary `json:"summary"`
	Hotspots []HotspotEntry `json:"hotspots"`
	Metadata FileMetadata   `json:"metadata"`
}

// SpeciesInfo names a species.
type SpeciesInfo struct {
	CommonName     string `json:"common_name"`
	ScientificName string `json:"scientific_name"`
}

// SpeciesSummary aggregates a species across its admitted hotspots.
type SpeciesSummary struct {
	TotalHotspotsDetected int     `json:"total_hotspots_detected"`
	TotalDetections       int     `json:"total_detections"`
	HighestOccurrenceRate float64 `json:"highest_occurrence_rate"`
}

// HotspotEntry is one ranked hotspot within a species file.
type HotspotEntry struct {
	Rank        int                `json:"rank"`
	LocalityID  string             `json:"locality_id"`
	Name        string             `json:"name"`
	Coordinates Coordinates        `json:"coordinates"`
	Occurrence  Occurrence         `json:"occurrence"`
	Seasonal    map[string]float64 `json:"seasonal"`
	Monthly     map[string]float64 `json:"monthly"`
}

// Coordinates is a WGS-84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Occurrence carries the rate and its provenance.
type Occurrence struct {
	Rate            float64  `json:"rate"`
	DetectionCount  int      `json:"detection_count"`
	TotalChecklists int      `json:"total_checklists"`
	Confidence      string   `json:"confidence"`
	AvgCount        *float64 `json:"avg_count,omitempty"`
	MaxCount        *int     `json:"max_count,omitempty"`
}

// FileMetadata stamps each output file with its run.
type FileMetadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
}

// HotspotFile is the inverse guide: every species detected at one hotspot.
type HotspotFile struct {
	Hotspot  HotspotInfo    `json:"hotspot"`
	Species  []SpeciesEntry `json:"species"`
	Metadata FileMetadata   `json:"metadata"`
}

// HotspotInfo names a hotspot and its sampling depth.
type HotspotInfo struct {
	LocalityID      string      `json:"locality_id"`
	Name            string      `json:"name"`
	Coordinates     Coordinates `json:"coordinates"`
	TotalChecklists int         `json:"total_checklists"`
	Confidence      string      `json:"confidence"`
}

// SpeciesEntry is one ranked species within a hotspot file.
type SpeciesEntry struct {
	Rank       int                `json:"rank"`
	Species    SpeciesInfo        `json:"species"`
	Occurrence Occurrence         `json:"occurrence"`
	Seasonal   map[string]float64 `json:"seasonal"`
	Monthly    map[string]float64 `json:"monthly"`
}

// SpeciesIndex lists every species with its best hotspots, capped to the
// configured top-N. The full ranking lives in the species file.
type SpeciesIndex struct {
	TotalSpecies int                 `json:"total_species"`
	Species      []SpeciesIndexEntry `json:"species"`
	Metadata     FileMetadata        `json:"metadata"`
}

// SpeciesIndexEntry summarizes one species in the index.
type SpeciesIndexEntry struct {
	Species               SpeciesInfo       `json:"species"`
	File                  string            `json:"file"`
	TotalHotspotsDetected int               `json:"total_hotspots_detected"`
	HighestOccurrenceRate float64           `json:"highest_occurrence_rate"`
	TopHotspots           []TopHotspotEntry `json:"top_hotspots"`
}

// TopHotspotEntry is a compact ranked hotspot reference.
type TopHotspotEntry struct {
	Rank       int     `json:"rank"`
	LocalityID string  `json:"locality_id"`
	Name       string  `json:"name"`
	Rate       float64 `json:"rate"`
}

// HotspotIndex lists every admitted hotspot.
type HotspotIndex struct {
	TotalHotspots int                 `json:"total_hotspots"`
	Hotspots      []HotspotIndexEntry `json:"hotspots"`
	Metadata      FileMetadata        `json:"metadata"`
}

// HotspotIndexEntry summarizes one hotspot in the index.
type HotspotIndexEntry struct {
	LocalityID      string      `json:"locality_id"`
	Name            string      `json:"name"`
	File            string      `json:"file"`
	Coordinates     Coordinates `json:"coordinates"`
	TotalChecklists int         `json:"total_checklists"`
	Confidence      string      `json:"confidence"`
	SpeciesDetected int         `json:"species_detected"`
}

// Metadata is the run-level metadata.json.
type Metadata struct {
	GeneratedAt             time.Time `json:"generated_at"`
	Version                 string    `json:"version"`
	TotalSpecies            int       `json:"total_species"`
	TotalHotspots           int       `json:"total_hotspots"`
	ExcludedBelowMinimum    int       `json:"excluded_hotspots_below_minimum"`
	TotalChecklists         int       `json:"total_checklists"`
	SamplingRowsSkipped     int64     `json:"sampling_rows_skipped"`
	SamplingRowsFiltered    int64     `json:"sampling_rows_filtered"`
	ObservationRowsSkipped  int64     `json:"observation_rows_skipped"`
	ObservationRowsFiltered int64     `json:"observation_rows_filtered"`
	ProcessingDurationMs    int64     `json:"processing_duration_ms"`
}

// Writer serializes GuideSets.
type Writer struct {
	OutputDir string
	TopN      int
	Version   string
	Logger    *slog.Logger
}

// Write serializes the guide set under OutputDir, replacing any previous
// output only after the new tree is complete.
func (w *Writer) Write(gs *pipeline.GuideSet) (err error) {
	parent := filepath.Dir(filepath.Clean(w.OutputDir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create output parent: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, ".hotspot-guide-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmp)
		}
	}()

	for _, sub := range []string{"species", "hotspots", "index"} {
		if err = os.Mkdir(filepath.Join(tmp, sub), 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", sub, err)
		}
	}

	meta := FileMetadata{GeneratedAt: gs.Stats.FinishedAt, Version: w.Version}

	if err = w.writeSpeciesFiles(tmp, gs, meta); err != nil {
		return err
	}
	if err = w.writeHotspotFiles(tmp, gs, meta); err != nil {
		return err
	}
	if err = w.writeIndexes(tmp, gs, meta); err != nil {
		return err
	}
	if err = w.writeMetadata(tmp, gs); err != nil {
		return err
	}

	if err = os.RemoveAll(w.OutputDir); err != nil {
		return fmt.Errorf("remove previous output: %w", err)
	}
	if err = os.Rename(tmp, w.OutputDir); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}

	w.Logger.Info("output written",
		"dir", w.OutputDir,
		"species_files", len(gs.Species),
		"hotspot_files", len(gs.Hotspots),
	)
	return nil
}

func (w *Writer) writeSpeciesFiles(dir string, gs *pipeline.GuideSet, meta FileMetadata) error {
	for _, g := range gs.Species {
		file := SpeciesFile{
			Species: SpeciesInfo{CommonName: g.Species.CommonName, ScientificName: g.Species.ScientificName},
			Summary: SpeciesSummary{
				TotalHotspotsDetected: len(g.Hotspots),
				TotalDetections:       g.TotalDetections,
				HighestOccurrenceRate: round(g.HighestRate, rateDecimals),
			},
			Hotspots: make([]HotspotEntry, len(g.Hotspots)),
			Metadata: meta,
		}
		for i, h := range g.Hotspots {
			r := h.Result
			file.Hotspots[i] = HotspotEntry{
				Rank:        h.Rank,
				LocalityID:  r.LocalityID,
				Name:        r.Name,
				Coordinates: Coordinates{Latitude: r.Latitude, Longitude: r.Longitude},
				Occurrence:  occurrenceJSON(r),
				Seasonal:    roundMap(r.Seasonal),
				Monthly:     roundMap(r.Monthly),
			}
		}

		path := filepath.Join(dir, "species", SpeciesSlug(g.Species.CommonName)+".json")
		if err := writeJSON(path, file); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeHotspotFiles(dir string, gs *pipeline.GuideSet, meta FileMetadata) error {
	for _, g := range gs.Hotspots {
		file := HotspotFile{
			Hotspot: HotspotInfo{
				LocalityID:      g.LocalityID,
				Name:            g.Name,
				Coordinates:     Coordinates{Latitude: g.Latitude, Longitude: g.Longitude},
				TotalChecklists: g.TotalChecklists,
				Confidence:      string(g.Confidence),
			},
			Species:  make([]SpeciesEntry, len(g.Species)),
			Metadata: meta,
		}
		for i, s := range g.Species {
			r := s.Result
			file.Species[i] = SpeciesEntry{
				Rank:       s.Rank,
				Species:    SpeciesInfo{CommonName: r.Species.CommonName, ScientificName: r.Species.ScientificName},
				Occurrence: occurrenceJSON(r),
				Seasonal:   roundMap(r.Seasonal),
				Monthly:    roundMap(r.Monthly),
			}
		}

		path := filepath.Join(dir, "hotspots", HotspotSlug(g.LocalityID)+".json")
		if err := writeJSON(path, file); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeIndexes(dir string, gs *pipeline.GuideSet, meta FileMetadata) error {
	speciesIndex := SpeciesIndex{
		TotalSpecies: len(gs.Species),
		Species:      make([]SpeciesIndexEntry, len(gs.Species)),
		Metadata:     meta,
	}
	for i, g := range gs.Species {
		top := g.Hotspots
		if len(top) > w.TopN {
			top = top[:w.TopN]
		}
		entry := SpeciesIndexEntry{
			Species:               SpeciesInfo{CommonName: g.Species.CommonName, ScientificName: g.Species.ScientificName},
			File:                  "species/" + SpeciesSlug(g.Species.CommonName) + ".json",
			TotalHotspotsDetected: len(g.Hotspots),
			HighestOccurrenceRate: round(g.HighestRate, rateDecimals),
			TopHotspots:           make([]TopHotspotEntry, len(top)),
		}
		for j, h := range top {
			entry.TopHotspots[j] = TopHotspotEntry{
				Rank:       h.Rank,
				LocalityID: h.Result.LocalityID,
				Name:       h.Result.Name,
				Rate:       round(h.Result.Rate, rateDecimals),
			}
		}
		speciesIndex.Species[i] = entry
	}
	if err := writeJSON(filepath.Join(dir, "index", "species_index.json"), speciesIndex); err != nil {
		return err
	}

	hotspotIndex := HotspotIndex{
		TotalHotspots: len(gs.Hotspots),
		Hotspots:      make([]HotspotIndexEntry, len(gs.Hotspots)),
		Metadata:      meta,
	}
	for i, g := range gs.Hotspots {
		hotspotIndex.Hotspots[i] = HotspotIndexEntry{
			LocalityID:      g.LocalityID,
			Name:            g.Name,
			File:            "hotspots/" + HotspotSlug(g.LocalityID) + ".json",
			Coordinates:     Coordinates{Latitude: g.Latitude, Longitude: g.Longitude},
			TotalChecklists: g.TotalChecklists,
			Confidence:      string(g.Confidence),
			SpeciesDetected: len(g.Species),
		}
	}
	return writeJSON(filepath.Join(dir, "index", "hotspot_index.json"), hotspotIndex)
}

func (w *Writer) writeMetadata(dir string, gs *pipeline.GuideSet) error {
	s := gs.Stats
	return writeJSON(filepath.Join(dir, "metadata.json"), Metadata{
		GeneratedAt:             s.FinishedAt,
		Version:                 w.Version,
		TotalSpecies:            s.SpeciesCount,
		TotalHotspots:           s.HotspotsIncluded,
		ExcludedBelowMinimum:    s.HotspotsExcludedBelowMin,
		TotalChecklists:         s.TotalChecklists,
		SamplingRowsSkipped:     s.SamplingRowsSkipped,
		SamplingRowsFiltered:    s.SamplingRowsFiltered,
		ObservationRowsSkipped:  s.ObservationRowsSkipped,
		ObservationRowsFiltered: s.ObservationRowsFiltered,
		ProcessingDurationMs:    s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
	})
}

func occurrenceJSON(r occurrence.Result) Occurrence {
	o := Occurrence{
		Rate:            round(r.Rate, rateDecimals),
		DetectionCount:  r.DetectionCount,
		TotalChecklists: r.TotalChecklists,
		Confidence:      string(r.Confidence),
	}
	if r.AvgCount > 0 {
		avg := round(r.AvgCount, 1)
		o.AvgCount = &avg
	}
	if r.MaxCount > 0 {
		mc := r.MaxCount
		o.MaxCount = &mc
	}
	return o
}

// SpeciesSlug converts a common name to its file stem:
// "Black-capped Chickadee" -> "black_capped_chickadee".
func SpeciesSlug(commonName string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(commonName) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// HotspotSlug converts a locality ID to its file stem. Locality IDs are
// already filesystem-safe ("L123456"); lowercased for consistency.
func HotspotSlug(localityID string) string {
	return strings.ToLower(localityID)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func round(x float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(x*pow) / pow
}

func roundMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round(v, rateDecimals)
	}
	return out
}
