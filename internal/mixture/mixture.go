// Package mixture implements the Gaussian-mixture generative model of
// per-group, per-item ratings that the elicitation planner is built on:
// rating sampling, the group posterior, and the Mahalanobis-only reward
// classifier consumed by Monte Carlo rollouts.
package mixture

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

const (
	// MaxNumGroups is the compile-time cap on the number of latent groups.
	MaxNumGroups = 128

	// MaxNumItems is the compile-time cap on the number of items.
	MaxNumItems = 1500
)

// Model holds the per-group, per-item Gaussian parameters (mu, sigma2).
// Immutable after construction, so a single Model may be shared by
// reference across concurrent workers.
type Model struct {
	numGroups, numItems int
	mu, sigma2          [][]float64
}

// New validates and wraps dense G x I matrices of means and variances.
func New(mu, sigma2 [][]float64) (*Model, error) {
	numGroups := len(mu)
	if numGroups < 2 {
		return nil, errors.Errorf("need at least 2 groups, got %d", numGroups)
	}
	if numGroups > MaxNumGroups {
		return nil, errors.Errorf("number of groups %d exceeds MaxNumGroups %d", numGroups, MaxNumGroups)
	}
	if len(sigma2) != numGroups {
		return nil, errors.Errorf("mu has %d groups but sigma2 has %d", numGroups, len(sigma2))
	}
	numItems := len(mu[0])
	if numItems > MaxNumItems {
		return nil, errors.Errorf("number of items %d exceeds MaxNumItems %d", numItems, MaxNumItems)
	}
	for g := 0; g < numGroups; g++ {
		if len(mu[g]) != numItems {
			return nil, errors.Errorf("mu row %d has %d items, want %d", g, len(mu[g]), numItems)
		}
		if len(sigma2[g]) != numItems {
			return nil, errors.Errorf("sigma2 row %d has %d items, want %d", g, len(sigma2[g]), numItems)
		}
		for i := 0; i < numItems; i++ {
			if !isFinite(mu[g][i]) || !isFinite(sigma2[g][i]) {
				return nil, errors.Errorf("non-finite parameter at group=%d item=%d", g, i)
			}
			if sigma2[g][i] <= 0 {
				return nil, errors.Errorf("sigma2[%d][%d]=%g must be > 0", g, i, sigma2[g][i])
			}
		}
	}
	return &Model{numGroups: numGroups, numItems: numItems, mu: mu, sigma2: sigma2}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NumGroups returns G.
func (m *Model) NumGroups() int { return m.numGroups }

// NumItems returns I.
func (m *Model) NumItems() int { return m.numItems }

// SampleRating draws mu[g,i] + Z*sqrt(sigma2[g,i]), Z ~ N(0,1). rng.NormFloat64
// is a ziggurat-based standard normal generator, the hot path of the planner.
func (m *Model) SampleRating(rng *rand.Rand, group, item int) float64 {
	return m.mu[group][item] + rng.NormFloat64()*math.Sqrt(m.sigma2[group][item])
}

// MeanRating returns the deterministic mu[g,i], used by the one-step
// non-Monte-Carlo planner.
func (m *Model) MeanRating(group, item int) float64 {
	return m.mu[group][item]
}

// GroupProbs computes the posterior p(g | items, ratings) assuming a
// uniform prior. If the normalizer underflows to zero, it falls back to
// the uniform distribution rather than dividing by zero.
func (m *Model) GroupProbs(items []int, ratings []float64) []float64 {
	if len(items) != len(ratings) {
		panic("mixture: items and ratings length mismatch")
	}
	sumSq := make([]float64, m.numGroups)
	logSigma := make([]float64, m.numGroups)
	for k, item := range items {
		r := ratings[k]
		for g := 0; g < m.numGroups; g++ {
			d := r - m.mu[g][item]
			sumSq[g] += d * d / m.sigma2[g][item]
			logSigma[g] += 0.5 * math.Log(m.sigma2[g][item])
		}
	}
	probs := make([]float64, m.numGroups)
	var total float64
	for g := 0; g < m.numGroups; g++ {
		probs[g] = math.Exp(-0.5*sumSq[g] - logSigma[g])
		total += probs[g]
	}
	if total == 0 {
		uniform := 1.0 / float64(m.numGroups)
		for g := range probs {
			probs[g] = uniform
		}
		return probs
	}
	for g := range probs {
		probs[g] /= total
	}
	return probs
}

// EstimatedGroup returns argmax_g p(g), ties broken by the smaller g.
func (m *Model) EstimatedGroup(items []int, ratings []float64) int {
	probs := m.GroupProbs(items, ratings)
	best := 0
	for g := 1; g < len(probs); g++ {
		if probs[g] > probs[best] {
			best = g
		}
	}
	return best
}

// InitRewardErr computes the per-group Mahalanobis term (no log-sigma)
// over the already-elicited prefix (items, ratings), hoisting that cost
// out of the rollout loop so it is computed once per simulation.
func (m *Model) InitRewardErr(items []int, ratings []float64) []float64 {
	err := make([]float64, m.numGroups)
	for k, item := range items {
		r := ratings[k]
		for g := 0; g < m.numGroups; g++ {
			d := r - m.mu[g][item]
			err[g] += d * d / m.sigma2[g][item]
		}
	}
	return err
}

// Reward draws a fresh rating for assumedGroup at every item in
// pathItems and rolloutItems, accumulates the Mahalanobis-only error on
// top of initErr for every candidate group, and returns 1 iff the
// argmin-error group equals assumedGroup, else 0.
//
// This intentionally omits the log-sigma term present in GroupProbs: the
// per-group variances are assumed comparable across items, so the
// log-determinant term would not change the argmin often enough to be
// worth the extra Log calls in the planner's hottest loop.
func (m *Model) Reward(rng *rand.Rand, assumedGroup int, pathItems, rolloutItems []int, initErr []float64) int {
	err := make([]float64, m.numGroups)
	copy(err, initErr)

	accumulate := func(item int) {
		r := m.SampleRating(rng, assumedGroup, item)
		for g := 0; g < m.numGroups; g++ {
			d := r - m.mu[g][item]
			err[g] += d * d / m.sigma2[g][item]
		}
	}
	for _, item := range pathItems {
		accumulate(item)
	}
	for _, item := range rolloutItems {
		accumulate(item)
	}

	best := 0
	for g := 1; g < m.numGroups; g++ {
		if err[g] < err[best] {
			best = g
		}
	}
	if best == assumedGroup {
		return 1
	}
	return 0
}
