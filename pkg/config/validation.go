package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that cannot
// be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// The default filesystem URI must carry a scheme; it is the fallback
	// for scheme-less raw paths, so a scheme-less URI here would leave
	// those paths unclassifiable.
	u, err := url.Parse(cfg.DefaultFS)
	if err != nil {
		return fmt.Errorf("default_fs: not a valid URI: %w", err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("default_fs: URI %q has no scheme", cfg.DefaultFS)
	}

	// Snapshot store options live in a type-keyed section; selecting a
	// type without its section is a config mistake, not a default.
	if cfg.Snapshot.Type == "s3" && len(cfg.Snapshot.S3) == 0 {
		return fmt.Errorf("snapshot: type is s3 but the s3 section is missing")
	}

	return nil
}

// DefaultScheme returns the scheme of the configured default filesystem.
// Validate has already guaranteed it parses and carries a scheme.
func (c *Config) DefaultScheme() string {
	u, err := url.Parse(c.DefaultFS)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
