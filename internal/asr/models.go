package asr

import (
	"errors"
	"fmt"
	"strings"
)

// SupportedModels is the fixed set of model names the engine accepts.
// Validation happens before any model load or remote call.
var SupportedModels = []string{"tiny", "base", "small", "medium", "medium.en", "large", "turbo"}

// ErrUnsupportedModel indicates a model name outside SupportedModels
var ErrUnsupportedModel = errors.New("unsupported model")

// ValidateModel checks a model name against the supported set
func ValidateModel(name string) error {
	for _, m := range SupportedModels {
		if name == m {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (must be one of: %s)",
		ErrUnsupportedModel, name, strings.Join(SupportedModels, ", "))
}
