package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/usecase"
)

// LoadLanguageRules reads the optional YAML overlay for the normalization and
// classification tables. An empty path means no overlay; a named file that is
// missing or malformed is a configuration error, not a silent fallback.
func LoadLanguageRules(path string) (usecase.LanguageRules, error) {
	if path == "" {
		return usecase.LanguageRules{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return usecase.LanguageRules{}, domain.WrapError(domain.ErrConfiguration, "load language rules",
			fmt.Errorf("read %s: %w", path, err))
	}

	var rules usecase.LanguageRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return usecase.LanguageRules{}, domain.WrapError(domain.ErrConfiguration, "load language rules",
			fmt.Errorf("parse %s: %w", path, err))
	}
	return rules, nil
}
