package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/bnb/errors"
	"github.com/grovetools/bnb/pkg/paths"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Format is the on-disk encoding of a configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var configNames = []string{
	"bnb.yml",
	"bnb.yaml",
	"bnb.toml",
	".bnb.yml",
	".bnb.yaml",
}

var overrideNames = []string{
	"bnb.override.yml",
	"bnb.override.yaml",
	"bnb.override.toml",
}

// Load reads and parses a single bnb configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	return LoadFromBytes(data, formatOf(path))
}

// LoadDefault finds and loads the configuration with hierarchical merging:
// 1. Global config (~/.config/bnb/bnb.yml) - base layer
// 2. Project config (bnb.yml, searched upwards) - overrides global
// 3. Local override (bnb.override.yml) - overrides all
// 4. BNB_* environment variables
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	layered, err := LoadLayeredWithLogger(startDir, logrus.New())
	if err != nil {
		return nil, err
	}
	return layered.Final, nil
}

// LoadLayered loads every configuration layer and the merged result.
func LoadLayered(startDir string) (*LayeredConfig, error) {
	return LoadLayeredWithLogger(startDir, logrus.New())
}

// LoadLayeredWithLogger loads configuration with hierarchical merging and logging.
// Unlike a project tool, the client runs fine without any file: missing layers
// are skipped and defaults fill the gaps.
func LoadLayeredWithLogger(startDir string, logger *logrus.Logger) (*LayeredConfig, error) {
	layered := &LayeredConfig{FilePaths: make(map[ConfigSource]string)}
	final := &Config{}

	projectPath, _ := FindConfigFile(startDir)
	envDir := startDir
	if projectPath != "" {
		envDir = filepath.Dir(projectPath)
	}
	loadDotEnv(envDir, logger)

	// 1. Global config (optional)
	if globalPath := globalConfigPath(); globalPath != "" {
		if _, err := os.Stat(globalPath); err == nil {
			logger.WithField("path", globalPath).Debug("Loading global configuration")
			cfg, err := readRaw(globalPath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse global configuration, continuing without it")
			} else {
				layered.Global = cfg
				layered.FilePaths[SourceGlobal] = globalPath
				final = mergeConfigs(final, cfg)
			}
		}
	}

	// 2. Project config (optional)
	if projectPath != "" {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		cfg, err := readRaw(projectPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindConfigInvalid, "failed to parse project config").
				WithDetail("path", projectPath)
		}
		layered.Project = cfg
		layered.FilePaths[SourceProject] = projectPath
		final = mergeConfigs(final, cfg)

		// 3. Override next to the project file (optional)
		for _, name := range overrideNames {
			overridePath := filepath.Join(filepath.Dir(projectPath), name)
			if _, err := os.Stat(overridePath); err != nil {
				continue
			}
			logger.WithField("path", overridePath).Debug("Loading local override configuration")
			cfg, err := readRaw(overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to parse override file, skipping")
				continue
			}
			layered.Override = cfg
			layered.FilePaths[SourceOverride] = overridePath
			final = mergeConfigs(final, cfg)
			break
		}
	}

	// 4. Environment
	applyEnvOverrides(final)

	if err := validateSchema(final); err != nil {
		return nil, err
	}
	final.SetDefaults()
	if err := final.Validate(); err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if data, err := yaml.Marshal(final); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(data))
		}
	}

	layered.Final = final
	return layered, nil
}

// LoadFromBytes parses, validates and defaults configuration from a byte array.
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	cfg, err := decode(data, format)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfigInvalid, "failed to parse configuration")
	}

	if err := validateSchema(cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches for a bnb configuration file from startDir up to the
// filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.ConfigNotFound(startDir)
}

func readRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(data, formatOf(path))
}

// decode expands ${VAR} references and unmarshals without defaults or validation.
func decode(data []byte, format Format) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	if format == FormatTOML {
		// Round-trip TOML through a generic map so the inline Extensions
		// field is populated exactly as it is for YAML.
		var raw map[string]interface{}
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, err
		}
		converted, err := yaml.Marshal(raw)
		if err != nil {
			return nil, err
		}
		expanded = converted
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func formatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BNB_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("BNB_API_TIMEOUT"); v != "" {
		cfg.API.Timeout = v
	}
	if v := os.Getenv("BNB_STORAGE"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("BNB_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
}

// loadDotEnv loads dir/.env into the process environment. Variables that are
// already set win over the file.
func loadDotEnv(dir string, logger *logrus.Logger) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		logger.WithError(err).WithField("path", path).Warn("Failed to load .env file")
		return
	}
	logger.WithField("path", path).Debug("Loaded .env file")
}

func globalConfigPath() string {
	dir := paths.ConfigDir()
	if dir == "" {
		return ""
	}
	for _, name := range []string{"bnb.yml", "bnb.yaml", "bnb.toml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(dir, "bnb.yml")
}
