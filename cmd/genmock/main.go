// Command genmock generates a synthetic eBird Basic Dataset pair (observation
// and sampling event TSVs) for integration tests and demos. Generation is
// deterministic for a given seed, and the printed stats give the expected
// per-hotspot checklist totals and per-species detection counts, so test
// assertions can be updated from the output.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir testdata/mock -hotspots 6 -checklists 400
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var samplingHeader = []string{
	"SAMPLING EVENT IDENTIFIER",
	"LOCALITY ID",
	"LOCALITY",
	"LOCALITY TYPE",
	"LATITUDE",
	"LONGITUDE",
	"OBSERVATION DATE",
	"ALL SPECIES REPORTED",
}

var observationHeader = []string{
	"COMMON NAME",
	"SCIENTIFIC NAME",
	"CATEGORY",
	"SAMPLING EVENT IDENTIFIER",
	"LOCALITY ID",
	"LOCALITY TYPE",
	"OBSERVATION DATE",
	"ALL SPECIES REPORTED",
	"OBSERVATION COUNT",
}

// speciesDef pairs a species with how likely it is to appear on a checklist.
type speciesDef struct {
	common     string
	scientific string
	frequency  float64
}

var speciesPool = []speciesDef{
	{"American Robin", "Turdus migratorius", 0.70},
	{"Black-capped Chickadee", "Poecile atricapillus", 0.55},
	{"Blue Jay", "Cyanocitta cristata", 0.45},
	{"Northern Cardinal", "Cardinalis cardinalis", 0.40},
	{"Song Sparrow", "Melospiza melodia", 0.30},
	{"Blue Grosbeak", "Passerina caerulea", 0.05},
	{"Wilson's Warbler", "Cardellina pusilla", 0.08},
}

// Non-species taxa mixed into the observation file; the generator must count
// them as filtered, never as detections.
var spuhs = []speciesDef{
	{"duck sp.", "Anatinae sp.", 0.10},
	{"Mallard x American Black Duck (hybrid)", "Anas platyrhynchos x rubripes", 0.02},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory to write the dataset pair into")
	hotspots := flag.Int("hotspots", 6, "number of hotspot localities")
	checklists := flag.Int("checklists", 400, "total checklists across all localities")
	seed := flag.Int64("seed", 20250115, "random seed for reproducible output")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	d := generate(rng, *hotspots, *checklists)

	samplingPath := filepath.Join(*outDir, "ebd_US-MN_mock_sampling.txt")
	if err := writeTSV(samplingPath, samplingHeader, d.samplingRows); err != nil {
		return fmt.Errorf("writing sampling file: %w", err)
	}
	log.Printf("wrote sampling file: %s (%d rows)", samplingPath, len(d.samplingRows))

	mainPath := filepath.Join(*outDir, "ebd_US-MN_mock.txt")
	if err := writeTSV(mainPath, observationHeader, d.observationRows); err != nil {
		return fmt.Errorf("writing main file: %w", err)
	}
	log.Printf("wrote main file: %s (%d rows)", mainPath, len(d.observationRows))

	printStats(d)
	return nil
}

// dataset carries the generated rows plus the ground-truth tallies the
// generator tracked while producing them.
type dataset struct {
	samplingRows    [][]string
	observationRows [][]string

	checklistsPerHotspot map[string]int
	detections           map[string]int // "common name @ locality" -> qualifying detections
	filteredSampling     int
	filteredObservations int
}

func generate(rng *rand.Rand, hotspots, checklists int) *dataset {
	d := &dataset{
		checklistsPerHotspot: make(map[string]int),
		detections:           make(map[string]int),
	}

	localities := make([]string, hotspots)
	for i := range localities {
		localities[i] = fmt.Sprintf("L%06d", 100001+i*37)
	}

	for i := 0; i < checklists; i++ {
		checklistID := fmt.Sprintf("S%08d", 10000001+i)
		locality := localities[rng.Intn(len(localities))]
		name := "Mock Hotspot " + locality
		month := 1 + rng.Intn(12)
		date := fmt.Sprintf("2024-%02d-%02d", month, 1+rng.Intn(28))
		lat := fmt.Sprintf("%.5f", 44.5+rng.Float64())
		lon := fmt.Sprintf("%.5f", -93.5+rng.Float64())

		// A slice of the traffic is incomplete or away from hotspots; both
		// kinds must be filtered by the readers, in both files.
		complete := "1"
		locType := "H"
		qualifies := true
		switch {
		case rng.Float64() < 0.10:
			complete = "0"
			qualifies = false
		case rng.Float64() < 0.05:
			locType = "P"
			qualifies = false
		}

		d.samplingRows = append(d.samplingRows, []string{
			checklistID, locality, name, locType, lat, lon, date, complete,
		})
		if qualifies {
			d.checklistsPerHotspot[locality]++
		} else {
			d.filteredSampling++
		}

		for _, sp := range speciesPool {
			if rng.Float64() >= sp.frequency {
				continue
			}
			count := countValue(rng)
			d.observationRows = append(d.observationRows, []string{
				sp.common, sp.scientific, "species", checklistID, locality, locType, date, complete, count,
			})
			if qualifies {
				d.detections[sp.common+" @ "+locality]++
			} else {
				d.filteredObservations++
			}
		}

		for _, sp := range spuhs {
			if rng.Float64() >= sp.frequency {
				continue
			}
			category := "spuh"
			if strings.Contains(sp.common, "hybrid") {
				category = "hybrid"
			}
			d.observationRows = append(d.observationRows, []string{
				sp.common, sp.scientific, category, checklistID, locality, locType, date, complete, "X",
			})
			d.filteredObservations++
		}
	}
	return d
}

// countValue mixes numeric counts with the presence-only sentinel.
func countValue(rng *rand.Rand) string {
	if rng.Float64() < 0.2 {
		return "X"
	}
	return fmt.Sprintf("%d", 1+rng.Intn(8))
}

func writeTSV(path string, header []string, rows [][]string) error {
	var b strings.Builder
	b.WriteString(strings.Join(header, "\t"))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func printStats(d *dataset) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Sampling rows: %d (%d filtered)\n", len(d.samplingRows), d.filteredSampling)
	fmt.Printf("Observation rows: %d (%d filtered)\n", len(d.observationRows), d.filteredObservations)

	localities := make([]string, 0, len(d.checklistsPerHotspot))
	for l := range d.checklistsPerHotspot {
		localities = append(localities, l)
	}
	sort.Strings(localities)
	fmt.Println("\nQualifying checklists per hotspot:")
	for _, l := range localities {
		fmt.Printf("  %s: %d\n", l, d.checklistsPerHotspot[l])
	}

	keys := make([]string, 0, len(d.detections))
	for k := range d.detections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("\nQualifying detections per species and hotspot:")
	for _, k := range keys {
		fmt.Printf("  %s: %d\n", k, d.detections[k])
	}
}
