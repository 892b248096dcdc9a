package ebird_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aingebritson/ebird-hotspot-guide/internal/ebird"
)

// writeTSV writes tab-joined rows to a temp file and returns its path.
func writeTSV(t *testing.T, rows ...[]string) string {
	t.Helper()
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

var samplingHeader = []string{
	"COUNTRY", "LOCALITY ID", "LOCALITY", "LOCALITY TYPE", "LATITUDE",
	"LONGITUDE", "OBSERVATION DATE", "SAMPLING EVENT IDENTIFIER",
	"ALL SPECIES REPORTED",
}

func samplingRow(locID, name, locType, lat, lon, date, checklistID, complete string) []string {
	return []string{"US", locID, name, locType, lat, lon, date, checklistID, complete}
}

var observationHeader = []string{
	"COMMON NAME", "SCIENTIFIC NAME", "CATEGORY", "LOCALITY ID",
	"LOCALITY TYPE", "SAMPLING EVENT IDENTIFIER", "ALL SPECIES REPORTED",
	"OBSERVATION DATE", "OBSERVATION COUNT",
}

func observationRow(common, sci, category, locID, locType, checklistID, complete, date, count string) []string {
	return []string{common, sci, category, locID, locType, checklistID, complete, date, count}
}

// readAllChecklists drains a reader with the given chunk size.
func readAllChecklists(t *testing.T, src *ebird.SamplingSource) ([]ebird.Checklist, int64, int64) {
	t.Helper()
	r, err := src.Open()
	require.NoError(t, err)
	defer r.Close()

	var all []ebird.Checklist
	for {
		chunk, err := r.ReadChunk(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		all = append(all, chunk...)
	}
	return all, r.Skipped(), r.Filtered()
}

func TestChecklistReader_FiltersAndParses(t *testing.T) {
	path := writeTSV(t,
		samplingHeader,
		samplingRow("L1", "Gallup Park", "H", "42.28", "-83.70", "2024-06-15", "S1", "1"),
		samplingRow("L1", "Gallup Park", "H", "42.28", "-83.70", "2024-07-02", "S2", "1"),
		samplingRow("L1", "Gallup Park", "H", "42.28", "-83.70", "2024-07-02", "S3", "0"),  // incomplete
		samplingRow("L2", "Backyard", "P", "42.30", "-83.72", "2024-06-15", "S4", "1"),     // personal
		samplingRow("", "Nowhere", "H", "42.28", "-83.70", "2024-06-15", "S5", "1"),        // no locality id
		samplingRow("L3", "Barton Pond", "H", "not-a-lat", "-83.75", "2024-06-15", "S6", "1"), // bad latitude
		samplingRow("L3", "Barton Pond", "H", "42.31", "-83.75", "bad-date", "S7", "1"),    // bad date
	)

	src := &ebird.SamplingSource{Path: path, ChunkSize: 100}
	got, skipped, filtered := readAllChecklists(t, src)

	want := []ebird.Checklist{
		{ChecklistID: "S1", LocalityID: "L1", LocalityName: "Gallup Park", Latitude: 42.28, Longitude: -83.70, Month: 6},
		{ChecklistID: "S2", LocalityID: "L1", LocalityName: "Gallup Park", Latitude: 42.28, Longitude: -83.70, Month: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("checklists mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(3), skipped, "malformed rows")
	assert.Equal(t, int64(2), filtered, "non-qualifying rows")
}

func TestChecklistReader_ChunkBoundariesDoNotAffectResults(t *testing.T) {
	rows := [][]string{samplingHeader}
	for _, id := range []string{"S1", "S2", "S3", "S4", "S5"} {
		rows = append(rows, samplingRow("L1", "Gallup Park", "H", "42.28", "-83.70", "2024-06-15", id, "1"))
	}
	path := writeTSV(t, rows...)

	big, _, _ := readAllChecklists(t, &ebird.SamplingSource{Path: path, ChunkSize: 1000})
	small, _, _ := readAllChecklists(t, &ebird.SamplingSource{Path: path, ChunkSize: 2})

	if diff := cmp.Diff(big, small); diff != "" {
		t.Errorf("chunk size changed results (-big +small):\n%s", diff)
	}
	assert.Len(t, small, 5)
}

func TestSamplingSource_RestartableTraversal(t *testing.T) {
	path := writeTSV(t,
		samplingHeader,
		samplingRow("L1", "Gallup Park", "H", "42.28", "-83.70", "2024-06-15", "S1", "1"),
		samplingRow("L2", "Barton Pond", "H", "42.31", "-83.75", "2024-03-01", "S2", "1"),
	)
	src := &ebird.SamplingSource{Path: path, ChunkSize: 10}

	first, _, _ := readAllChecklists(t, src)
	second, _, _ := readAllChecklists(t, src)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second traversal differs (-first +second):\n%s", diff)
	}
}

func TestObservationReader_FiltersAndParses(t *testing.T) {
	path := writeTSV(t,
		observationHeader,
		observationRow("Blue Grosbeak", "Passerina caerulea", "species", "L1", "H", "S1", "1", "2024-06-15", "2"),
		observationRow("Blue Grosbeak", "Passerina caerulea", "species", "L1", "H", "S2", "1", "2024-06-20", "X"),
		observationRow("Mallard x American Black Duck (hybrid)", "Anas platyrhynchos x rubripes", "hybrid", "L1", "H", "S1", "1", "2024-06-15", "1"), // not species-level
		observationRow("gull sp.", "Larinae sp.", "spuh", "L1", "H", "S1", "1", "2024-06-15", "3"),   // not species-level
		observationRow("Blue Grosbeak", "Passerina caerulea", "species", "L1", "H", "S3", "0", "2024-06-15", "1"), // incomplete checklist
		observationRow("Blue Grosbeak", "Passerina caerulea", "species", "L2", "P", "S4", "1", "2024-06-15", "1"), // personal locality
		observationRow("", "Passerina caerulea", "species", "L1", "H", "S5", "1", "2024-06-15", "1"), // missing common name
	)

	r, err := (&ebird.ObservationSource{Path: path, ChunkSize: 100}).Open()
	require.NoError(t, err)
	defer r.Close()

	var got []ebird.Observation
	for {
		chunk, err := r.ReadChunk(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
	}

	want := []ebird.Observation{
		{ChecklistID: "S1", LocalityID: "L1", CommonName: "Blue Grosbeak", ScientificName: "Passerina caerulea", Month: 6, Count: 2},
		{ChecklistID: "S2", LocalityID: "L1", CommonName: "Blue Grosbeak", ScientificName: "Passerina caerulea", Month: 6, Count: ebird.CountUnknown},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(1), r.Skipped())
	assert.Equal(t, int64(4), r.Filtered())
}

func TestObservationReader_ContextCancellation(t *testing.T) {
	path := writeTSV(t,
		observationHeader,
		observationRow("Blue Grosbeak", "Passerina caerulea", "species", "L1", "H", "S1", "1", "2024-06-15", "1"),
	)

	r, err := (&ebird.ObservationSource{Path: path, ChunkSize: 10}).Open()
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.ReadChunk(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpen_MissingColumn(t *testing.T) {
	path := writeTSV(t,
		[]string{"LOCALITY ID", "LOCALITY"},
		[]string{"L1", "Gallup Park"},
	)
	_, err := (&ebird.SamplingSource{Path: path, ChunkSize: 10}).Open()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestFindDataFiles(t *testing.T) {
	touch := func(dir, name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	t.Run("finds the pair", func(t *testing.T) {
		dir := t.TempDir()
		touch(dir, "ebd_US-MI_202401_202412_relMay-2025.txt")
		touch(dir, "ebd_US-MI_202401_202412_relMay-2025_sampling.txt")

		mainFile, samplingFile, err := ebird.FindDataFiles(dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "ebd_US-MI_202401_202412_relMay-2025.txt"), mainFile)
		assert.Equal(t, filepath.Join(dir, "ebd_US-MI_202401_202412_relMay-2025_sampling.txt"), samplingFile)
	})

	t.Run("missing sampling file", func(t *testing.T) {
		dir := t.TempDir()
		touch(dir, "ebd_US-MI_202401.txt")
		_, _, err := ebird.FindDataFiles(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling")
	})

	t.Run("missing main file", func(t *testing.T) {
		dir := t.TempDir()
		touch(dir, "ebd_US-MI_202401_sampling.txt")
		_, _, err := ebird.FindDataFiles(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "main data file")
	})

	t.Run("ambiguous main files", func(t *testing.T) {
		dir := t.TempDir()
		touch(dir, "ebd_one.txt")
		touch(dir, "ebd_two.txt")
		touch(dir, "ebd_one_sampling.txt")
		_, _, err := ebird.FindDataFiles(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple")
	})
}
