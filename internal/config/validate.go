package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		return errors.New("paths.archive_dir must be set")
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.DefaultProvider {
	case "local", "gemini":
	default:
		return fmt.Errorf("llm.default_provider must be \"local\" or \"gemini\", got %q", c.LLM.DefaultProvider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.DefaultProvider == "gemini" && c.LLM.GeminiAPIKey == "" {
		return errors.New("llm.gemini_api_key is required when llm.default_provider is gemini (or set GEMINI_API_KEY)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.OverlapSize >= c.Pipeline.PartSize {
		return fmt.Errorf("pipeline.overlap_size (%d) must be smaller than pipeline.part_size (%d)", c.Pipeline.OverlapSize, c.Pipeline.PartSize)
	}
	if c.Pipeline.MinPartSize > c.Pipeline.PartSize {
		return fmt.Errorf("pipeline.min_part_size (%d) must not exceed pipeline.part_size (%d)", c.Pipeline.MinPartSize, c.Pipeline.PartSize)
	}
	return nil
}

func (c *Config) validateProgress() error {
	for stage, estimate := range c.Progress.Estimates {
		if estimate.BaseSeconds < 0 || estimate.Per1kSeconds < 0 {
			return fmt.Errorf("progress.estimates.%s: coefficients must be non-negative", stage)
		}
	}
	var total float64
	for status, weight := range c.Progress.Weights {
		if weight < 0 {
			return fmt.Errorf("progress.weights.%s must be non-negative", status)
		}
		total += weight
	}
	if math.Abs(total-100) > 0.001 {
		return fmt.Errorf("progress.weights must sum to 100, got %.2f", total)
	}
	return nil
}
