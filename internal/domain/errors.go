package domain

import (
	"errors"
	"fmt"
)

// Pipeline errors. The first three mean no guide could be assembled for the
// place and surface as "nothing found"; anything else is an upstream failure.
var (
	// ErrNoResults indicates the content search returned zero documents.
	ErrNoResults = errors.New("no search results")

	// ErrNoContent indicates no chunk survived normalization and filtering.
	ErrNoContent = errors.New("no usable content")

	// ErrEmbeddingFailed indicates every embedding batch failed.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrNoGuideGenerated indicates the generative model returned empty output.
	ErrNoGuideGenerated = errors.New("no content generated")
)

// NotFound reports whether err means no evidence exists for the place,
// as opposed to an upstream call failing.
func NotFound(err error) bool {
	return errors.Is(err, ErrNoResults) || errors.Is(err, ErrNoContent) || errors.Is(err, ErrEmbeddingFailed)
}

// ValidationError is a user-fixable request error.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ConfigError is an operator-fixable configuration error listing the
// credentials that are unset.
type ConfigError struct {
	MissingKeys []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("API keys not configured: %v", e.MissingKeys)
}
