package ebird

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Column names read from the sampling file (checklist-level rows).
var samplingColumns = []string{
	"LOCALITY ID",
	"LOCALITY",
	"LOCALITY TYPE",
	"LATITUDE",
	"LONGITUDE",
	"OBSERVATION DATE",
	"SAMPLING EVENT IDENTIFIER",
	"ALL SPECIES REPORTED",
}

// Column names read from the main file (observation-level rows).
var observationColumns = []string{
	"COMMON NAME",
	"SCIENTIFIC NAME",
	"CATEGORY",
	"LOCALITY ID",
	"LOCALITY TYPE",
	"SAMPLING EVENT IDENTIFIER",
	"ALL SPECIES REPORTED",
	"OBSERVATION DATE",
	"OBSERVATION COUNT",
}

// SamplingSource produces fresh traversals of a sampling file. Each Open
// starts an independent read from the beginning, so multiple pipeline passes
// never share reader state.
type SamplingSource struct {
	Path      string
	ChunkSize int
}

// Open starts a new traversal of the sampling file.
func (s *SamplingSource) Open() (*ChecklistReader, error) {
	t, err := openTSV(s.Path, samplingColumns)
	if err != nil {
		return nil, err
	}
	return &ChecklistReader{t: t, chunkSize: s.ChunkSize}, nil
}

// ObservationSource produces fresh traversals of the main observations file.
type ObservationSource struct {
	Path      string
	ChunkSize int
}

// Open starts a new traversal of the main file.
func (s *ObservationSource) Open() (*ObservationReader, error) {
	t, err := openTSV(s.Path, observationColumns)
	if err != nil {
		return nil, err
	}
	return &ObservationReader{t: t, chunkSize: s.ChunkSize}, nil
}

// ChecklistReader streams qualifying checklists (complete, at a hotspot) from
// the sampling file in fixed-size chunks. Memory use is bounded by one chunk
// regardless of file size.
type ChecklistReader struct {
	t         *tsvFile
	chunkSize int
	skipped   int64
	filtered  int64
}

// ReadChunk returns up to the configured chunk size of qualifying checklists.
// It returns io.EOF once the file is exhausted. Rows failing the hotspot or
// completeness filters are counted as filtered; rows missing required fields
// are counted as skipped. Neither is fatal. An underlying read failure is.
func (r *ChecklistReader) ReadChunk(ctx context.Context) ([]Checklist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Checklist, 0, r.chunkSize)
	for len(out) < r.chunkSize {
		row, err := r.t.next()
		if errors.Is(err, io.EOF) {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read sampling file: %w", err)
		}

		if r.t.field(row, "LOCALITY TYPE") != string(LocalityHotspot) ||
			r.t.field(row, "ALL SPECIES REPORTED") != "1" {
			r.filtered++
			continue
		}

		c, ok := r.parseChecklist(row)
		if !ok {
			r.skipped++
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *ChecklistReader) parseChecklist(row []string) (Checklist, bool) {
	c := Checklist{
		ChecklistID:  r.t.field(row, "SAMPLING EVENT IDENTIFIER"),
		LocalityID:   r.t.field(row, "LOCALITY ID"),
		LocalityName: r.t.field(row, "LOCALITY"),
		Month:        parseMonth(r.t.field(row, "OBSERVATION DATE")),
	}
	if c.ChecklistID == "" || c.LocalityID == "" || c.Month == 0 {
		return Checklist{}, false
	}

	var err error
	c.Latitude, err = strconv.ParseFloat(r.t.field(row, "LATITUDE"), 64)
	if err != nil {
		return Checklist{}, false
	}
	c.Longitude, err = strconv.ParseFloat(r.t.field(row, "LONGITUDE"), 64)
	if err != nil {
		return Checklist{}, false
	}
	return c, true
}

// Skipped reports rows dropped for missing or unparseable required fields.
func (r *ChecklistReader) Skipped() int64 { return r.skipped }

// Filtered reports rows excluded by the hotspot and completeness filters.
func (r *ChecklistReader) Filtered() int64 { return r.filtered }

func (r *ChecklistReader) Close() error { return r.t.Close() }

// ObservationReader streams qualifying observations (species-level taxa on
// complete checklists at hotspots) from the main file in fixed-size chunks.
type ObservationReader struct {
	t         *tsvFile
	chunkSize int
	skipped   int64
	filtered  int64
}

// ReadChunk returns up to the configured chunk size of qualifying
// observations, io.EOF once exhausted. Counting semantics match
// [ChecklistReader.ReadChunk].
func (r *ObservationReader) ReadChunk(ctx context.Context) ([]Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Observation, 0, r.chunkSize)
	for len(out) < r.chunkSize {
		row, err := r.t.next()
		if errors.Is(err, io.EOF) {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read main file: %w", err)
		}

		if r.t.field(row, "LOCALITY TYPE") != string(LocalityHotspot) ||
			r.t.field(row, "ALL SPECIES REPORTED") != "1" ||
			r.t.field(row, "CATEGORY") != CategorySpecies {
			r.filtered++
			continue
		}

		o, ok := r.parseObservation(row)
		if !ok {
			r.skipped++
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *ObservationReader) parseObservation(row []string) (Observation, bool) {
	o := Observation{
		ChecklistID:    r.t.field(row, "SAMPLING EVENT IDENTIFIER"),
		LocalityID:     r.t.field(row, "LOCALITY ID"),
		CommonName:     r.t.field(row, "COMMON NAME"),
		ScientificName: r.t.field(row, "SCIENTIFIC NAME"),
		Month:          parseMonth(r.t.field(row, "OBSERVATION DATE")),
		Count:          parseCount(r.t.field(row, "OBSERVATION COUNT")),
	}
	if o.ChecklistID == "" || o.LocalityID == "" || o.CommonName == "" || o.Month == 0 {
		return Observation{}, false
	}
	return o, true
}

// Skipped reports rows dropped for missing or unparseable required fields.
func (r *ObservationReader) Skipped() int64 { return r.skipped }

// Filtered reports rows excluded by the admission filters.
func (r *ObservationReader) Filtered() int64 { return r.filtered }

func (r *ObservationReader) Close() error { return r.t.Close() }

// parseCount parses OBSERVATION COUNT, mapping the presence-only sentinel "X"
// and anything unparseable to CountUnknown.
func parseCount(s string) int {
	if s == "" || s == "X" {
		return CountUnknown
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return CountUnknown
	}
	return n
}
