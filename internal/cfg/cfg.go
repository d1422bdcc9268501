// Package cfg loads engine settings from a YAML file or the environment.
// Environment variables always override values read from the file.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"dga-engine/internal/common"
	"dga-engine/internal/ml"
	"dga-engine/internal/normative"
)

type Settings struct {
	DataPath         string
	ModelDir         string
	Folds            int
	Seed             int64
	Workers          int
	NormativeMode    string
	NormativeURL     string
	NormativeTimeout time.Duration
	ServerPort       int
	LogLevel         string
	Hyperparameters  ml.Hyperparameters
}

type ConfigFile struct {
	Storage struct {
		DataPath string `yaml:"dataPath"`
		ModelDir string `yaml:"modelDir"`
	} `yaml:"storage"`

	Training struct {
		Folds           int                `yaml:"folds"`
		Seed            int64              `yaml:"seed"`
		Workers         int                `yaml:"workers"`
		Hyperparameters ml.Hyperparameters `yaml:"hyperparameters"`
	} `yaml:"training"`

	Normative struct {
		Mode    string `yaml:"mode"`
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"normative"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads the file named by CONFIG_FILE when set, otherwise the environment.
func Load() (Settings, error) {
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return LoadFile(configPath)
	}
	return loadFromEnv()
}

// LoadFile reads settings from a YAML file. Keys missing from the file keep
// their defaults.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := defaultConfigFile()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(config.Normative.Timeout)
	if err != nil {
		return Settings{}, fmt.Errorf("invalid normative timeout %q: %w", config.Normative.Timeout, err)
	}

	settings := Settings{
		DataPath:         getEnvOrDefault(common.EnvDataPath, config.Storage.DataPath),
		ModelDir:         getEnvOrDefault(common.EnvModelDir, config.Storage.ModelDir),
		Folds:            getIntOrDefault(common.EnvFolds, config.Training.Folds),
		Seed:             getInt64OrDefault(common.EnvSeed, config.Training.Seed),
		Workers:          getIntOrDefault(common.EnvWorkers, config.Training.Workers),
		NormativeMode:    getEnvOrDefault(common.EnvNormativeMode, config.Normative.Mode),
		NormativeURL:     getEnvOrDefault(common.EnvNormativeURL, config.Normative.URL),
		NormativeTimeout: getDurationOrDefault(common.EnvNormativeTimeout, timeout),
		ServerPort:       getIntOrDefault(common.EnvServerPort, config.Server.Port),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, config.Logging.Level),
		Hyperparameters:  hyperparametersFromEnv(config.Training.Hyperparameters),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:         getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		ModelDir:         getEnvOrDefault(common.EnvModelDir, common.DefaultModelDir),
		Folds:            getIntOrDefault(common.EnvFolds, common.DefaultFolds),
		Seed:             getInt64OrDefault(common.EnvSeed, common.DefaultSeed),
		Workers:          getIntOrDefault(common.EnvWorkers, common.DefaultWorkers),
		NormativeMode:    getEnvOrDefault(common.EnvNormativeMode, common.DefaultNormativeMode),
		NormativeURL:     os.Getenv(common.EnvNormativeURL), // only for remote mode
		NormativeTimeout: getDurationOrDefault(common.EnvNormativeTimeout, 5*time.Second),
		ServerPort:       getIntOrDefault(common.EnvServerPort, common.DefaultServerPort),
		LogLevel:         getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		Hyperparameters:  hyperparametersFromEnv(ml.DefaultHyperparameters()),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func defaultConfigFile() ConfigFile {
	var c ConfigFile
	c.Storage.DataPath = common.DefaultDataPath
	c.Storage.ModelDir = common.DefaultModelDir
	c.Training.Folds = common.DefaultFolds
	c.Training.Seed = common.DefaultSeed
	c.Training.Workers = common.DefaultWorkers
	c.Training.Hyperparameters = ml.DefaultHyperparameters()
	c.Normative.Mode = common.DefaultNormativeMode
	c.Normative.Timeout = common.DefaultNormativeTimeout
	c.Server.Port = common.DefaultServerPort
	c.Logging.Level = common.DefaultLogLevel
	return c
}

// hyperparametersFromEnv applies the hyperparameter override keys to hp.
func hyperparametersFromEnv(hp ml.Hyperparameters) ml.Hyperparameters {
	hp.ForestTrees = getIntOrDefault(common.EnvForestTrees, hp.ForestTrees)
	hp.ForestMaxDepth = getIntOrDefault(common.EnvForestMaxDepth, hp.ForestMaxDepth)
	hp.SVMC = getFloatOrDefault(common.EnvSVMC, hp.SVMC)
	hp.SVMGamma = getFloatOrDefault(common.EnvSVMGamma, hp.SVMGamma)
	hp.KNNNeighbors = getIntOrDefault(common.EnvKNNNeighbors, hp.KNNNeighbors)
	hp.MLPHidden = getIntsOrDefault(common.EnvMLPHidden, hp.MLPHidden)
	hp.MLPLearningRate = getFloatOrDefault(common.EnvMLPLearningRate, hp.MLPLearningRate)
	hp.MLPMaxEpochs = getIntOrDefault(common.EnvMLPMaxEpochs, hp.MLPMaxEpochs)
	return hp
}

// ServiceConfig converts the settings into the engine facade configuration.
func (s *Settings) ServiceConfig() ml.ServiceConfig {
	return ml.ServiceConfig{
		Config: ml.Config{
			Hyperparameters: s.Hyperparameters,
			Seed:            s.Seed,
			Workers:         s.Workers,
		},
		ModelDir:     s.ModelDir,
		DefaultFolds: s.Folds,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getIntsOrDefault parses a comma separated list such as "64,32".
func getIntsOrDefault(key string, defaultValue []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, i)
	}
	return out
}

// validateSettings performs range checks on every configuration value
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.ModelDir == "" {
		return fmt.Errorf("model directory cannot be empty")
	}

	if settings.Folds < common.MinFolds || settings.Folds > common.MaxFolds {
		return fmt.Errorf("folds must be between %d and %d, got %d", common.MinFolds, common.MaxFolds, settings.Folds)
	}
	if settings.Workers < 1 || settings.Workers > common.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", common.MaxWorkers, settings.Workers)
	}

	switch settings.NormativeMode {
	case normative.ModeLocal:
	case normative.ModeRemote:
		if settings.NormativeURL == "" {
			return fmt.Errorf("normative URL is required in remote mode")
		}
	default:
		return fmt.Errorf("normative mode must be %q or %q, got %q", normative.ModeLocal, normative.ModeRemote, settings.NormativeMode)
	}
	if settings.NormativeTimeout < 100*time.Millisecond || settings.NormativeTimeout > time.Minute {
		return fmt.Errorf("normative timeout must be between 100ms and 1m, got %v", settings.NormativeTimeout)
	}

	if settings.ServerPort < common.MinServerPort || settings.ServerPort > common.MaxServerPort {
		return fmt.Errorf("server port must be between %d and %d, got %d", common.MinServerPort, common.MaxServerPort, settings.ServerPort)
	}
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	if err := settings.Hyperparameters.Validate(); err != nil {
		return fmt.Errorf("invalid hyperparameters: %w", err)
	}
	return nil
}
