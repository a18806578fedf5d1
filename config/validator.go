package config

import (
	stderrors "errors"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/schema"
)

// validateSchema checks cfg against the embedded bnb.yml schema. Each
// violation is reported as a detail keyed by its JSON pointer.
func validateSchema(cfg *Config) error {
	validator, err := schema.NewValidator()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "failed to load config schema")
	}

	err = validator.Validate(cfg)
	if err == nil {
		return nil
	}
	out := errors.Wrap(err, errors.KindConfigValidation, "configuration does not match the schema")
	var serr *schema.Error
	if stderrors.As(err, &serr) {
		for _, v := range serr.Violations {
			out = out.WithDetail(v.Path, v.Message)
		}
	}
	return out
}
