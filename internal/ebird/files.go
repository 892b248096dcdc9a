package ebird

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FindDataFiles locates the main and sampling files of an EBD download in
// dataDir. It expects exactly one *_sampling.txt and exactly one ebd_*.txt
// that is not the sampling file; anything else is an error so a run never
// silently processes the wrong dataset.
func FindDataFiles(dataDir string) (mainFile, samplingFile string, err error) {
	samplingMatches, err := filepath.Glob(filepath.Join(dataDir, "*_sampling.txt"))
	if err != nil {
		return "", "", fmt.Errorf("scan %s: %w", dataDir, err)
	}
	switch len(samplingMatches) {
	case 0:
		return "", "", fmt.Errorf("no sampling file (*_sampling.txt) found in %s", dataDir)
	case 1:
	default:
		return "", "", fmt.Errorf("multiple sampling files found in %s: %v", dataDir, samplingMatches)
	}
	samplingFile = samplingMatches[0]

	ebdMatches, err := filepath.Glob(filepath.Join(dataDir, "ebd_*.txt"))
	if err != nil {
		return "", "", fmt.Errorf("scan %s: %w", dataDir, err)
	}
	var mainMatches []string
	for _, m := range ebdMatches {
		if !strings.HasSuffix(m, "_sampling.txt") {
			mainMatches = append(mainMatches, m)
		}
	}
	switch len(mainMatches) {
	case 0:
		return "", "", fmt.Errorf("no main data file (ebd_*.txt) found in %s", dataDir)
	case 1:
	default:
		return "", "", fmt.Errorf("multiple main data files found in %s: %v", dataDir, mainMatches)
	}

	return mainMatches[0], samplingFile, nil
}
