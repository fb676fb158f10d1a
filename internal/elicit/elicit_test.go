package elicit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilina/nymelicit/internal/mixture"
	"github.com/dilina/nymelicit/internal/planner"
)

func twoGroupModel(t *testing.T, numItems int) *mixture.Model {
	t.Helper()
	mu := make([][]float64, 2)
	sigma2 := make([][]float64, 2)
	for g := 0; g < 2; g++ {
		mu[g] = make([]float64, numItems)
		sigma2[g] = make([]float64, numItems)
		for i := range mu[g] {
			mu[g][i] = float64(g)
			sigma2[g][i] = 1
		}
	}
	m, err := mixture.New(mu, sigma2)
	require.NoError(t, err)
	return m
}

func TestRunOneHonorsMaxCountBudget(t *testing.T) {
	m := twoGroupModel(t, 6)
	p := planner.New(m, planner.DefaultConfig(), 1)
	d := New(m, p, Config{MaxCount: 3, FirstItem: -1})

	result, err := d.RunOne(0, func(item int) float64 { return m.MeanRating(0, item) })
	require.NoError(t, err)
	assert.Len(t, result.UsedItems, 3)
	assert.Len(t, result.Ratings, 3)
	assert.Len(t, result.RoundBudgets, 3, "one recorded simulation budget per elicited round")
	for _, budget := range result.RoundBudgets {
		assert.Greater(t, budget, 0)
	}
}

func TestRunOneNeverRepeatsAnItem(t *testing.T) {
	m := twoGroupModel(t, 8)
	p := planner.New(m, planner.DefaultConfig(), 2)
	d := New(m, p, Config{MaxCount: 6, FirstItem: 0})

	result, err := d.RunOne(1, func(item int) float64 { return m.MeanRating(1, item) })
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, item := range result.UsedItems {
		assert.False(t, seen[item], "item %d elicited twice", item)
		seen[item] = true
	}
}

func TestRunOneHonorsSeededFirstItem(t *testing.T) {
	m := twoGroupModel(t, 4)
	p := planner.New(m, planner.DefaultConfig(), 3)
	d := New(m, p, Config{MaxCount: 1, FirstItem: 2})

	result, err := d.RunOne(0, func(item int) float64 { return m.MeanRating(0, item) })
	require.NoError(t, err)
	require.Len(t, result.UsedItems, 1)
	assert.Equal(t, 2, result.UsedItems[0])
}

// A rating of 0.8 after a first elicited item rated near group 1's mean
// should shift the posterior toward group 1 more than group 0.
func TestTwoGroupSanityPosteriorShiftsTowardHigherRating(t *testing.T) {
	mu := [][]float64{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
	}
	sigma2 := [][]float64{
		{1, 1, 1, 1},
		{1, 1, 1, 1},
	}
	m, err := mixture.New(mu, sigma2)
	require.NoError(t, err)

	probs := m.GroupProbs([]int{0}, []float64{0.8})
	assert.Greater(t, probs[1], probs[0])
}

func TestEndToEndTwoGroupSuccessRateExceeds90Percent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping a 200-try end-to-end run in -short mode")
	}
	const numItems = 50
	m := twoGroupModel(t, numItems)

	cfg := planner.DefaultConfig()
	cfg.NumRollouts = 1
	cfg.MaxLookahead = 1
	cfg.MaxNumRollouts = 0

	rng := rand.New(rand.NewSource(99))
	const tries = 200
	const maxCount = 10

	var successes int
	for trueGroup := 0; trueGroup < 2; trueGroup++ {
		p := planner.New(m, cfg, int64(1000+trueGroup))
		d := New(m, p, Config{MaxCount: maxCount, FirstItem: -1})
		for try := 0; try < tries; try++ {
			result, err := d.RunOne(trueGroup, func(item int) float64 {
				return m.SampleRating(rng, trueGroup, item)
			})
			require.NoError(t, err)
			if result.Correct {
				successes++
			}
		}
	}
	rate := float64(successes) / float64(2*tries)
	assert.Greater(t, rate, 0.90, "mean per-group success rate must exceed 0.90, got %f", rate)
}
