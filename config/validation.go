package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/grovetools/bnb/errors"
)

const maxTimeout = 5 * time.Minute

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateAPI(&c.API); err != nil {
		return err
	}
	return validateStorage(&c.Storage)
}

func validateAPI(api *APIConfig) error {
	u, err := url.Parse(api.BaseURL)
	if err != nil {
		return errors.Wrap(err, errors.KindConfigValidation, "api.base_url is not a valid URL").
			WithDetail("base_url", api.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New(errors.KindConfigValidation,
			fmt.Sprintf("api.base_url must use http or https, got %q", u.Scheme)).
			WithDetail("base_url", api.BaseURL)
	}
	if u.Host == "" {
		return errors.New(errors.KindConfigValidation, "api.base_url must include a host").
			WithDetail("base_url", api.BaseURL)
	}

	if api.Timeout != "" {
		d, err := time.ParseDuration(api.Timeout)
		if err != nil {
			return errors.Wrap(err, errors.KindConfigValidation, "api.timeout is not a valid duration").
				WithDetail("timeout", api.Timeout)
		}
		if d <= 0 || d > maxTimeout {
			return errors.New(errors.KindConfigValidation,
				fmt.Sprintf("api.timeout must be between 0 and %s, got %s", maxTimeout, d)).
				WithDetail("timeout", api.Timeout)
		}
	}

	if api.RateLimit.RPS < 0 {
		return errors.New(errors.KindConfigValidation, "api.rate_limit.rps cannot be negative")
	}
	if api.RateLimit.Burst < 0 {
		return errors.New(errors.KindConfigValidation, "api.rate_limit.burst cannot be negative")
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if s.Redis.Addr == "" {
			return errors.New(errors.KindConfigValidation, "storage.redis.addr is required for the redis backend")
		}
	default:
		return errors.New(errors.KindConfigValidation,
			fmt.Sprintf("storage.backend must be one of file, memory, redis; got %q", s.Backend)).
			WithDetail("backend", s.Backend)
	}
	return nil
}
