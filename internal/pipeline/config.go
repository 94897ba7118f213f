package pipeline

import (
	"fmt"

	"irrigation/internal/config"
	"irrigation/internal/distill"
	"irrigation/internal/features"
	"irrigation/internal/split"
	"irrigation/internal/tree"
	"irrigation/internal/types"
)

// DefaultAccuracyThreshold is the accuracy below which a run carries a
// low_accuracy warning unless the caller sets its own threshold.
const DefaultAccuracyThreshold = 0.9

// Config holds the parameters of one run.
type Config struct {
	Site              string        `json:"site"`
	MaxDepth          int           `json:"max_depth"`
	TestFraction      float64       `json:"test_fraction"`
	RandomSeed        int64         `json:"random_seed"`
	Features          []features.ID `json:"feature_set"`
	AccuracyThreshold float64       `json:"accuracy_threshold"`
	VerifySamples     int           `json:"verify_samples"`
}

// DefaultConfig returns depth 5, a 20% evaluation split with seed 42, the six
// default features and a 0.9 accuracy threshold.
func DefaultConfig() Config {
	return Config{
		MaxDepth:          tree.DefaultMaxDepth,
		TestFraction:      split.DefaultTestFraction,
		RandomSeed:        split.DefaultSeed,
		Features:          append([]features.ID(nil), features.DefaultSet...),
		AccuracyThreshold: DefaultAccuracyThreshold,
		VerifySamples:     distill.DefaultVerifySamples,
	}
}

// ConfigFrom converts the loaded process configuration.
func ConfigFrom(site string, pc config.PipelineConfig) (Config, error) {
	set, err := features.ParseSet(pc.FeatureSet)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Site:              site,
		MaxDepth:          pc.MaxDepth,
		TestFraction:      pc.TestFraction,
		RandomSeed:        pc.RandomSeed,
		Features:          set,
		AccuracyThreshold: pc.AccuracyThreshold,
		VerifySamples:     pc.VerifySamples,
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the trainer or splitter would refuse, so a
// bad run fails before any record is loaded.
func (c Config) Validate() error {
	if err := c.treeConfig().Validate(); err != nil {
		return err
	}
	if !(c.TestFraction > 0 && c.TestFraction < 1) {
		return types.NewAppError(types.ErrCodeValidationTestFraction,
			fmt.Sprintf("test fraction %v must be in (0, 1)", c.TestFraction), nil)
	}
	if c.AccuracyThreshold < 0 || c.AccuracyThreshold > 1 {
		return types.NewAppError(types.ErrCodeValidationThreshold,
			fmt.Sprintf("accuracy threshold %v must be in [0, 1]", c.AccuracyThreshold), nil)
	}
	return nil
}

func (c Config) treeConfig() tree.Config {
	return tree.Config{MaxDepth: c.MaxDepth, Features: c.Features}
}

func (c Config) featureNames() []string {
	out := make([]string, len(c.Features))
	for i, id := range c.Features {
		out[i] = id.Name()
	}
	return out
}
