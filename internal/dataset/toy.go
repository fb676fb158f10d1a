package dataset

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/dilina/nymelicit/internal/generics"
)

// toyDataset is a named, in-process generated dataset: a dense per-group
// mean/variance pair synthesized from a small set of parameters rather
// than read from disk.
type toyDataset struct {
	numGroups, numItems int
	groupMu             []float64
	groupSigma2         []float64
}

// builtinDatasets holds a handful of named dataset/nym-count
// combinations (dataset name x number of groups), reduced to
// parameters a generator can reproduce without any actual data files
// on disk.
var builtinDatasets = map[string]toyDataset{
	"toy2": {
		numGroups:   2,
		numItems:    50,
		groupMu:     []float64{0, 1},
		groupSigma2: []float64{1, 1},
	},
	"netflix8": {
		numGroups:   8,
		numItems:    1000,
		groupMu:     []float64{0, 1, 2, 3, 4, 5, 6, 7},
		groupSigma2: []float64{1, 1, 1, 1, 1, 1, 1, 1},
	},
	"goodreads8": {
		numGroups:   8,
		numItems:    500,
		groupMu:     []float64{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5},
		groupSigma2: []float64{1, 1, 1, 1, 1, 1, 1, 1},
	},
}

// BuiltinDatasetNames lists the names accepted by LoadBuiltin, sorted for
// stable -h / error-message output across runs.
func BuiltinDatasetNames() []string {
	return slices.Collect(generics.SortedKeys(builtinDatasets))
}

// LoadBuiltin constructs a dense G x I mean/variance pair for one of the
// named toy datasets: every item within a group shares that group's
// mean and variance.
func LoadBuiltin(name string) (mu, sigma2 [][]float64, err error) {
	d, ok := builtinDatasets[name]
	if !ok {
		return nil, nil, errors.Errorf("unknown builtin dataset %q (have %v)", name, BuiltinDatasetNames())
	}
	mu = make([][]float64, d.numGroups)
	sigma2 = make([][]float64, d.numGroups)
	for g := 0; g < d.numGroups; g++ {
		mu[g] = make([]float64, d.numItems)
		sigma2[g] = make([]float64, d.numItems)
		for i := 0; i < d.numItems; i++ {
			mu[g][i] = d.groupMu[g]
			sigma2[g][i] = d.groupSigma2[g]
		}
	}
	return mu, sigma2, nil
}
