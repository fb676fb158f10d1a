// Package dataset ingests the CSV inputs the CLI glues to the planner:
// per-group item-rating means/variances, and an optional pre-recorded
// user-ratings panel.
package dataset

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dilina/nymelicit/internal/mixture"
)

// ratingsFilenamePattern matches the required "*_N.csv" shape of a
// pre-recorded ratings panel, capturing the samples-per-group count N.
var ratingsFilenamePattern = regexp.MustCompile(`_(\d+)\.csv$`)

// LoadMatrix reads a comma-separated, trailing-newline-terminated file
// of one row per group/sample and one column per item, enforcing that
// every row has the same column count and that maxRows/maxCols (when
// positive) are not exceeded.
func LoadMatrix(path string, maxRows, maxCols int) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		return nil, errors.Errorf("%s: missing required trailing newline", path)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parsing csv %s", path)
	}
	if maxRows > 0 && len(records) > maxRows {
		return nil, errors.Errorf("%s: %d rows exceeds cap %d", path, len(records), maxRows)
	}

	numCols := -1
	matrix := make([][]float64, len(records))
	for i, row := range records {
		if numCols == -1 {
			numCols = len(row)
			if maxCols > 0 && numCols > maxCols {
				return nil, errors.Errorf("%s: %d columns exceeds cap %d", path, numCols, maxCols)
			}
		} else if len(row) != numCols {
			return nil, errors.Errorf("%s: row %d has %d columns, want %d", path, i, len(row), numCols)
		}
		vals := make([]float64, numCols)
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: row %d col %d: %q", path, i, j, cell)
			}
			vals[j] = v
		}
		matrix[i] = vals
	}
	return matrix, nil
}

// LoadMeanAndVariance loads the two required CSVs (means, variances) and
// constructs a mixture.Model from them.
func LoadMeanAndVariance(muPath, sigma2Path string) (*mixture.Model, error) {
	mu, err := LoadMatrix(muPath, mixture.MaxNumGroups, mixture.MaxNumItems)
	if err != nil {
		return nil, errors.WithMessage(err, "loading means")
	}
	sigma2, err := LoadMatrix(sigma2Path, mixture.MaxNumGroups, mixture.MaxNumItems)
	if err != nil {
		return nil, errors.WithMessage(err, "loading variances")
	}
	return mixture.New(mu, sigma2)
}

// RatingsPanel holds a pre-recorded set of per-group user ratings:
// Ratings[group][sample][item].
type RatingsPanel struct {
	SamplesPerGroup int
	Ratings         [][][]float64
}

// Rating returns the panel's recorded rating for the given group,
// sample (0-based "try" index) and item.
func (p *RatingsPanel) Rating(group, sample, item int) float64 {
	return p.Ratings[group][sample][item]
}

// LoadRatingsPanel loads a "*_N.csv" panel: G blocks of N rows each, one
// row per sampled user and one column per item, values stored negated on
// disk and sign-flipped here.
func LoadRatingsPanel(path string, numGroups, numItems int) (*RatingsPanel, error) {
	base := filepath.Base(path)
	m := ratingsFilenamePattern.FindStringSubmatch(base)
	if m == nil {
		return nil, errors.Errorf("%s: filename must match *_N.csv (N = samples per group)", path)
	}
	samplesPerGroup, err := strconv.Atoi(m[1])
	if err != nil || samplesPerGroup <= 0 {
		return nil, errors.Errorf("%s: invalid samples-per-group suffix", path)
	}

	flat, err := LoadMatrix(path, 0, mixture.MaxNumItems)
	if err != nil {
		return nil, err
	}
	wantRows := numGroups * samplesPerGroup
	if len(flat) != wantRows {
		return nil, errors.Errorf("%s: %d rows, want %d groups * %d samples = %d",
			path, len(flat), numGroups, samplesPerGroup, wantRows)
	}

	panel := &RatingsPanel{SamplesPerGroup: samplesPerGroup, Ratings: make([][][]float64, numGroups)}
	idx := 0
	for g := 0; g < numGroups; g++ {
		panel.Ratings[g] = make([][]float64, samplesPerGroup)
		for s := 0; s < samplesPerGroup; s++ {
			row := flat[idx]
			if len(row) != numItems {
				return nil, errors.Errorf("%s: row %d has %d items, want %d", path, idx, len(row), numItems)
			}
			negated := make([]float64, len(row))
			for i, v := range row {
				negated[i] = -v
			}
			panel.Ratings[g][s] = negated
			idx++
		}
	}
	return panel, nil
}
