// Package elicit drives the per-user cold-start elicitation loop: it
// maintains the elicited item set, observed ratings and group posterior,
// calls the planner once per round, and finalizes the group estimate.
package elicit

import (
	"math"

	"github.com/pkg/errors"

	"github.com/dilina/nymelicit/internal/mixture"
	"github.com/dilina/nymelicit/internal/planner"
)

// Config holds the per-driver elicitation parameters.
type Config struct {
	// MaxCount is the ratings budget per simulated user.
	MaxCount int

	// FirstItem, if >= 0, is asked first (outside the planner loop)
	// before any simulation is run.
	FirstItem int
}

// Driver runs independent elicitation "tries" against a single planner
// instance. One Driver (and its Planner) belongs to exactly one worker.
type Driver struct {
	model   *mixture.Model
	planner *planner.Planner
	cfg     Config
}

// New creates a Driver over the given model and planner.
func New(model *mixture.Model, p *planner.Planner, cfg Config) *Driver {
	return &Driver{model: model, planner: p, cfg: cfg}
}

// Result is the outcome of one elicitation try.
type Result struct {
	PredictedGroup int
	Correct        bool
	UsedItems      []int
	Ratings        []float64

	// RoundBudgets records, in round order, the simulation budget S spent
	// before each elicited item (after FirstItem, if any). Callers that
	// track search-cost metrics observe these directly instead of
	// recomputing simulationBudget themselves.
	RoundBudgets []int
}

// RunOne elicits cfg.MaxCount ratings for a single simulated user whose
// true group is trueGroup, using ratingFunc to obtain a rating for each
// chosen item (either a sampled draw from the mixture or a pre-recorded
// panel lookup), and returns the final predicted group.
func (d *Driver) RunOne(trueGroup int, ratingFunc func(item int) float64) (Result, error) {
	numItems := d.model.NumItems()
	numGroups := d.model.NumGroups()

	usedMask := make([]bool, numItems)
	usedList := make([]int, 0, d.cfg.MaxCount)
	ratings := make([]float64, 0, d.cfg.MaxCount)
	probs := make([]float64, numGroups)
	uniform := 1.0 / float64(numGroups)
	for g := range probs {
		probs[g] = uniform
	}

	elicitItem := func(item int) error {
		if item < 0 || item >= numItems {
			return errors.Errorf("elicit: item %d out of range [0,%d)", item, numItems)
		}
		if usedMask[item] {
			return errors.Errorf("elicit: item %d already elicited", item)
		}
		usedMask[item] = true
		usedList = append(usedList, item)
		ratings = append(ratings, ratingFunc(item))
		probs = d.model.GroupProbs(usedList, ratings)
		return nil
	}

	if d.cfg.FirstItem >= 0 {
		if err := elicitItem(d.cfg.FirstItem); err != nil {
			return Result{}, err
		}
	}

	roundBudgets := make([]int, 0, d.cfg.MaxCount)
	for len(usedList) < d.cfg.MaxCount {
		d.planner.Reset()
		remaining := d.cfg.MaxCount - len(usedList)
		budget := simulationBudget(numItems, remaining)
		roundBudgets = append(roundBudgets, budget)

		ctx := &planner.Context{
			UsedMask: usedMask,
			UsedList: usedList,
			Ratings:  ratings,
			Probs:    probs,
		}
		for i := 0; i < budget; i++ {
			if err := d.planner.Simulate(ctx); err != nil {
				return Result{}, err
			}
		}

		nextItem, ok := d.planner.BestChild()
		if !ok {
			return Result{}, errors.Errorf("elicit: planner found no candidate item with %d remaining", remaining)
		}
		if err := elicitItem(nextItem); err != nil {
			return Result{}, err
		}
	}

	predicted := d.model.EstimatedGroup(usedList, ratings)
	return Result{
		PredictedGroup: predicted,
		Correct:        predicted == trueGroup,
		UsedItems:      usedList,
		Ratings:        ratings,
		RoundBudgets:   roundBudgets,
	}, nil
}

// simulationBudget computes S = ceil(I * (1.25 + remaining^2)), widening
// the search early (many unseen items) and narrowing it near the
// horizon.
func simulationBudget(numItems, remaining int) int {
	return int(math.Ceil(float64(numItems) * (1.25 + float64(remaining*remaining))))
}
