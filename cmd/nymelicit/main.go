// Command nymelicit runs interactive cold-start elicitation experiments:
// for each latent group, it repeatedly simulates a user of that group,
// lets the MCTS planner choose which item to ask about next, and reports
// how often the final posterior correctly identifies the group.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/dilina/nymelicit/internal/dataset"
	"github.com/dilina/nymelicit/internal/elicit"
	"github.com/dilina/nymelicit/internal/mixture"
	"github.com/dilina/nymelicit/internal/parameters"
	"github.com/dilina/nymelicit/internal/planner"
	"github.com/dilina/nymelicit/internal/telemetry"
	"github.com/dilina/nymelicit/internal/ui/spinning"
)

var (
	flagMu           = flag.String("m", "", "File containing per-group, per-item rating means (csv).")
	flagSigma2       = flag.String("s", "", "File containing per-group, per-item rating variances (csv).")
	flagDataset      = flag.String("d", "", fmt.Sprintf("Use a bundled toy dataset instead of -m/-s. One of: %s", strings.Join(dataset.BuiltinDatasetNames(), ", ")))
	flagTries        = flag.Int("t", 200, "Number of independent cold-start runs/users per group.")
	flagMaxCount     = flag.Int("n", 10, "Number of items the simulated user is asked to rate.")
	flagNumRollouts  = flag.Int("r", 1, "Number of Monte Carlo rollouts per group, per simulation.")
	flagMaxLookahead = flag.Int("l", 1, "Max tree depth beyond the root. Sets max_num_rollouts = l-1.")
	flagUserRatings  = flag.String("u", "", "Optional pre-recorded user ratings panel (filename must match *_N.csv).")
	flagFirstItem    = flag.Int("f", -1, "If >= 0, item asked first, before any simulation.")
	flagNoMonteCarlo = flag.Bool("c", false, "Disable Monte Carlo rollouts; use the one-step mean-rating planner.")
	flagParams       = flag.String("params", "", "Extra \"key=value,...\" planner overrides (explore_scale, max_lookahead, num_rollouts, max_num_rollouts, use_montecarlo).")
	flagParallelism  = flag.Int("parallelism", 0, "Number of groups to run concurrently. 0 means GOMAXPROCS.")
	flagOutputDir    = flag.String("output_dir", "", "If set, write a JSON results summary to this directory.")
	flagMetricsAddr  = flag.String("metrics_addr", "", "If set, serve Prometheus metrics at this address (e.g. :9090).")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagMaxCount <= 0 {
		klog.Fatalf("invalid -n=%d, must be > 0", *flagMaxCount)
	}
	if *flagTries <= 0 {
		klog.Fatalf("invalid -t=%d, must be > 0", *flagTries)
	}

	model, err := loadModel()
	if err != nil {
		klog.Fatalf("failed to load model: %+v", err)
	}
	klog.Infof("loaded model: %d groups, %d items", model.NumGroups(), model.NumItems())

	var panel *dataset.RatingsPanel
	if *flagUserRatings != "" {
		panel, err = dataset.LoadRatingsPanel(*flagUserRatings, model.NumGroups(), model.NumItems())
		if err != nil {
			klog.Fatalf("failed to load user ratings: %+v", err)
		}
		if *flagTries > panel.SamplesPerGroup {
			klog.Warningf("-t=%d exceeds %d samples recorded per group in %s, capping",
				*flagTries, panel.SamplesPerGroup, *flagUserRatings)
			*flagTries = panel.SamplesPerGroup
		}
	}

	cfg, err := plannerConfig()
	if err != nil {
		klog.Fatalf("failed to build planner config: %+v", err)
	}

	if *flagMetricsAddr != "" {
		go func() {
			if err := telemetry.Serve(*flagMetricsAddr); err != nil {
				klog.Errorf("metrics server stopped: %+v", err)
			}
		}()
		klog.Infof("serving metrics at %s/metrics", *flagMetricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	spinning.SafeInterrupt(cancel, 5*time.Second)
	spin := spinning.New(ctx)

	successRates, err := runAllGroups(ctx, model, panel, cfg)
	spin.Done()
	cancel()
	if err != nil {
		klog.Fatalf("elicitation run failed: %+v", err)
	}

	report(successRates)

	if *flagOutputDir != "" {
		if err := writeSummary(*flagOutputDir, successRates); err != nil {
			klog.Errorf("failed to write output summary: %+v", err)
		}
	}
}

func loadModel() (*mixture.Model, error) {
	if *flagDataset != "" {
		mu, sigma2, err := dataset.LoadBuiltin(*flagDataset)
		if err != nil {
			return nil, err
		}
		return mixture.New(mu, sigma2)
	}
	if *flagMu == "" || *flagSigma2 == "" {
		return nil, errors.New("either -d <dataset> or both -m and -s must be set")
	}
	return dataset.LoadMeanAndVariance(*flagMu, *flagSigma2)
}

func plannerConfig() (planner.Config, error) {
	cfg := planner.DefaultConfig()
	cfg.NumRollouts = *flagNumRollouts
	cfg.MaxLookahead = *flagMaxLookahead
	cfg.MaxNumRollouts = *flagMaxLookahead - 1
	cfg.UseMonteCarlo = !*flagNoMonteCarlo
	if !cfg.UseMonteCarlo {
		cfg.MaxNumRollouts = 0
	}
	if cfg.MaxLookahead <= 0 {
		return cfg, errors.Errorf("invalid -l=%d, must be > 0", *flagMaxLookahead)
	}

	if *flagParams != "" {
		overrides := parameters.NewFromConfigString(*flagParams)
		overridden, err := planner.ConfigFromParams(cfg, overrides)
		if err != nil {
			return cfg, errors.WithMessage(err, "parsing -params")
		}
		cfg = overridden
	}
	return cfg, nil
}

func runAllGroups(parent context.Context, model *mixture.Model, panel *dataset.RatingsPanel, cfg planner.Config) ([]float64, error) {
	numGroups := model.NumGroups()
	results := make([]float64, numGroups)

	parallelism := *flagParallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(parallelism)

	for trueGroup := 0; trueGroup < numGroups; trueGroup++ {
		trueGroup := trueGroup
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rate, err := runGroup(model, panel, cfg, trueGroup)
			if err != nil {
				return errors.WithMessagef(err, "running group %d", trueGroup)
			}
			results[trueGroup] = rate
			telemetry.GroupAccuracy.WithLabelValues(fmt.Sprintf("%d", trueGroup)).Set(rate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runGroup(model *mixture.Model, panel *dataset.RatingsPanel, cfg planner.Config, trueGroup int) (float64, error) {
	seed := time.Now().UnixNano() ^ int64(trueGroup)<<32
	p := planner.New(model, cfg, seed)
	// sampleRNG draws simulated-user ratings; it is distinct from the
	// planner's own RNG so that rollout sampling never perturbs (or is
	// perturbed by) the sequence of ratings the simulated user reports.
	sampleRNG := rand.New(rand.NewSource(seed ^ 0x5bd1e995))
	driverCfg := elicit.Config{MaxCount: *flagMaxCount, FirstItem: *flagFirstItem}
	driver := elicit.New(model, p, driverCfg)

	successes := 0
	for tryIdx := 0; tryIdx < *flagTries; tryIdx++ {
		tryIdx := tryIdx
		ratingFunc := func(item int) float64 {
			if panel != nil {
				return panel.Rating(trueGroup, tryIdx, item)
			}
			return model.SampleRating(sampleRNG, trueGroup, item)
		}
		result, err := driver.RunOne(trueGroup, ratingFunc)
		if err != nil {
			return 0, err
		}
		telemetry.RoundsTotal.Add(float64(len(result.UsedItems)))
		for _, budget := range result.RoundBudgets {
			telemetry.SimulationsPerRound.Observe(float64(budget))
		}
		if result.Correct {
			successes++
		}
	}
	return float64(successes) / float64(*flagTries), nil
}

func report(successRates []float64) {
	fmt.Println("group/success rate:")
	for i := range successRates {
		fmt.Printf("%4d ", i)
	}
	fmt.Println()
	var mean float64
	for _, rate := range successRates {
		fmt.Printf("%4.2f ", rate)
		mean += rate
	}
	fmt.Printf("\nmean=%.4f\n", mean/float64(len(successRates)))
}

type summary struct {
	SuccessRateByGroup []float64 `json:"success_rate_by_group"`
	Mean               float64   `json:"mean"`
}

func writeSummary(dir string, successRates []float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating output dir %s", dir)
	}
	var mean float64
	for _, r := range successRates {
		mean += r
	}
	mean /= float64(len(successRates))

	data, err := json.MarshalIndent(summary{SuccessRateByGroup: successRates, Mean: mean}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling summary")
	}
	path := fmt.Sprintf("%s/summary.json", dir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
