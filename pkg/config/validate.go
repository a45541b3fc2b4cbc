package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against its struct validation tags and the
// cross-field invariants the tags alone cannot express (unique server
// names, a server root present for every instance).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	seen := make(map[string]bool, len(cfg.Servers))
	for i, s := range cfg.Servers {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("server[%d]", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate server name %q", name)
		}
		seen[name] = true
	}

	return nil
}

// formatValidationError turns validator's field-path error into a
// human-readable message, one line per failing field.
func formatValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var lines []string
	for _, fe := range verrs {
		lines = append(lines, fmt.Sprintf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(lines, "; "))
}
