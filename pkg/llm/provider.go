package llm

import (
	"context"
)

// Image is an in-memory picture handed to a vision model.
type Image struct {
	Data []byte
	MIME string // e.g. "image/jpeg"
}

// Provider defines the interface for interacting with LLM services.
type Provider interface {
	// GenerateText sends a prompt and returns the text response.
	GenerateText(ctx context.Context, name, prompt string) (string, error)

	// GenerateJSON sends a prompt and unmarshals the response into the target struct.
	GenerateJSON(ctx context.Context, name, prompt string, target any) error

	// GenerateImageJSON sends a prompt plus an image and unmarshals the
	// JSON response into the target struct.
	GenerateImageJSON(ctx context.Context, name, prompt string, img Image, target any) error

	// HealthCheck verifies that the provider is configured and reachable.
	HealthCheck(ctx context.Context) error

	// HasProfile checks if the provider has a specific profile configured.
	HasProfile(name string) bool
}
