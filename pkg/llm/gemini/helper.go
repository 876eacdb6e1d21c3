package gemini

import (
	"math/rand"

	"google.golang.org/genai"

	"github.com/NagiElgarhi/view-tours/pkg/prompt"
)

// resolveModel returns the target model name and configuration for the given intent.
func (c *Client) resolveModel(intent string) (string, *genai.GenerateContentConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targetModel := c.modelName // Default
	if profileModel, ok := c.profiles[intent]; ok && profileModel != "" {
		targetModel = profileModel
	}

	cfg := &genai.GenerateContentConfig{}

	if c.temperatureBase > 0 {
		var temp float32
		if intent == prompt.IntentReverify {
			// Deliberate re-ask: lower variability, no jitter.
			temp = clampTemperature(c.temperatureBase - c.reverifyDelta)
		} else {
			temp = sampleTemperature(c.temperatureBase, c.temperatureJitter)
		}
		cfg.Temperature = &temp
	}

	return targetModel, cfg
}

// sampleTemperature samples from a normal distribution centered on base.
// Uses jitter as the approximate range (±jitter), with σ = jitter/2.
// Result is clamped to [base-jitter, base+jitter] and minimum 0.1.
func sampleTemperature(base, jitter float32) float32 {
	if jitter <= 0 {
		return clampTemperature(base)
	}

	sigma := float64(jitter) / 2.0
	sample := float64(base) + rand.NormFloat64()*sigma

	minTemp := float64(base) - float64(jitter)
	maxTemp := float64(base) + float64(jitter)
	if sample < minTemp {
		sample = minTemp
	}
	if sample > maxTemp {
		sample = maxTemp
	}

	return clampTemperature(float32(sample))
}

func clampTemperature(t float32) float32 {
	if t < 0.1 {
		return 0.1
	}
	return t
}
