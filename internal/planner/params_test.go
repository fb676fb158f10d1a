package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilina/nymelicit/internal/parameters"
)

func TestConfigFromParamsOverridesOnlyGivenKeys(t *testing.T) {
	base := DefaultConfig()
	base.MaxLookahead = 3

	cfg, err := ConfigFromParams(base, parameters.Params{"explore_scale": "0.1"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.ExploreScale)
	assert.Equal(t, 3, cfg.MaxLookahead, "keys absent from the override string must keep the base value")
}

func TestConfigFromParamsRejectsMalformedValue(t *testing.T) {
	base := DefaultConfig()
	_, err := ConfigFromParams(base, parameters.Params{"max_lookahead": "not-a-number"})
	assert.Error(t, err)
}

func TestConfigFromParamsDisablesMonteCarlo(t *testing.T) {
	base := DefaultConfig()
	cfg, err := ConfigFromParams(base, parameters.Params{"use_montecarlo": "false"})
	require.NoError(t, err)
	assert.False(t, cfg.UseMonteCarlo)
}
