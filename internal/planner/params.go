package planner

import "github.com/dilina/nymelicit/internal/parameters"

// ConfigFromParams overrides whatever keys are present in params onto
// base, leaving the rest untouched.
func ConfigFromParams(base Config, params parameters.Params) (Config, error) {
	cfg := base
	var err error

	cfg.ExploreScale, err = parameters.PopParamOr(params, "explore_scale", cfg.ExploreScale)
	if err != nil {
		return cfg, err
	}
	cfg.MaxLookahead, err = parameters.PopParamOr(params, "max_lookahead", cfg.MaxLookahead)
	if err != nil {
		return cfg, err
	}
	cfg.NumRollouts, err = parameters.PopParamOr(params, "num_rollouts", cfg.NumRollouts)
	if err != nil {
		return cfg, err
	}
	cfg.MaxNumRollouts, err = parameters.PopParamOr(params, "max_num_rollouts", cfg.MaxNumRollouts)
	if err != nil {
		return cfg, err
	}
	cfg.UseMonteCarlo, err = parameters.PopParamOr(params, "use_montecarlo", cfg.UseMonteCarlo)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}
