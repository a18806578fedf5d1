package config

// mergeConfigs merges override configuration into base. Zero values in
// override never clear a value set in base.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	// API
	if override.API.BaseURL != "" {
		result.API.BaseURL = override.API.BaseURL
	}
	if override.API.Timeout != "" {
		result.API.Timeout = override.API.Timeout
	}
	if override.API.UserAgent != "" {
		result.API.UserAgent = override.API.UserAgent
	}
	if override.API.RateLimit.RPS != 0 {
		result.API.RateLimit.RPS = override.API.RateLimit.RPS
	}
	if override.API.RateLimit.Burst != 0 {
		result.API.RateLimit.Burst = override.API.RateLimit.Burst
	}

	// Storage
	if override.Storage.Backend != "" {
		result.Storage.Backend = override.Storage.Backend
	}
	if override.Storage.Path != "" {
		result.Storage.Path = override.Storage.Path
	}
	if override.Storage.Redis.Addr != "" {
		result.Storage.Redis.Addr = override.Storage.Redis.Addr
	}
	if override.Storage.Redis.Password != "" {
		result.Storage.Redis.Password = override.Storage.Redis.Password
	}
	if override.Storage.Redis.DB != 0 {
		result.Storage.Redis.DB = override.Storage.Redis.DB
	}
	if override.Storage.Redis.Prefix != "" {
		result.Storage.Redis.Prefix = override.Storage.Redis.Prefix
	}

	// Extensions merge key by key
	if len(override.Extensions) > 0 {
		merged := make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for k, v := range base.Extensions {
			merged[k] = v
		}
		for k, v := range override.Extensions {
			merged[k] = v
		}
		result.Extensions = merged
	}

	return &result
}
