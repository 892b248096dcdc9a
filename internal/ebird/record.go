// Package ebird models rows of the eBird Basic Dataset (EBD) and provides
// chunked, restartable readers over its two tab-separated files.
//
// # Data Source
//
// An EBD download contains two TSV files:
//
//   - The sampling file (*_sampling.txt) has one row per checklist: where it
//     was submitted, when, and whether the observer reported every species
//     they detected (a "complete" checklist).
//   - The main file (ebd_*.txt) has one row per species observation within a
//     checklist. A checklist reporting 40 species produces 40 rows here, all
//     sharing the same SAMPLING EVENT IDENTIFIER.
//
// # EBD Conventions
//
// Locality type:
//
//	"H" marks a hotspot (a shared public birding location); "P" marks a
//	personal location. Only hotspots participate in the guide.
//
// Completeness:
//
//	ALL SPECIES REPORTED is 1 for complete checklists, 0 otherwise. Only
//	complete checklists form a valid occurrence-rate denominator: an
//	incomplete checklist's silence about a species means nothing.
//
// Category:
//
//	CATEGORY distinguishes species-level taxa ("species") from hybrids,
//	slashes (ambiguous two-species records), spuhs (genus-only records), and
//	subspecies groups. Only species-level rows count as detections.
//
// Observation count:
//
//	OBSERVATION COUNT is an integer number of individuals, or the sentinel
//	"X" for presence-only records. Parsed to [CountUnknown] in that case.
package ebird

// LocalityType classifies an eBird locality.
type LocalityType string

const (
	LocalityHotspot  LocalityType = "H"
	LocalityPersonal LocalityType = "P"
)

// CategorySpecies is the EBD taxonomic category for species-level taxa.
// Other values ("hybrid", "slash", "spuh", "issf", ...) are filtered out.
const CategorySpecies = "species"

// CountUnknown marks a presence-only observation ("X" in the source data).
const CountUnknown = -1

// Checklist is one qualifying row of the sampling file: a complete checklist
// submitted at a hotspot. Readers apply the hotspot and completeness filters
// before yielding, so consumers never see non-qualifying rows.
type Checklist struct {
	ChecklistID  string
	LocalityID   string
	LocalityName string
	Latitude     float64
	Longitude    float64
	Month        int // 1..12, from OBSERVATION DATE
}

// Observation is one qualifying row of the main file: a species-level taxon
// reported on a complete checklist at a hotspot.
type Observation struct {
	ChecklistID    string
	LocalityID     string
	CommonName     string
	ScientificName string
	Month          int // 1..12, from OBSERVATION DATE
	Count          int // individuals, or CountUnknown for "X"
}
