package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// StoreMode selects which storage representation is active.
type StoreMode string

const (
	ModeDocument   StoreMode = "document"
	ModeNormalized StoreMode = "normalized"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Store      StoreConfig      `yaml:"store"`
	Data       DataConfig       `yaml:"data"`
	Generation GenerationConfig `yaml:"generation"`
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type StoreConfig struct {
	Mode StoreMode `yaml:"mode"` // document, normalized
}

type DataConfig struct {
	Dir string `yaml:"dir"`
}

// GenerationConfig holds the default model parameters recorded with
// normalized instructions for reproducibility grouping. The model call
// itself happens outside this repo.
type GenerationConfig struct {
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

func loadConfig() *Config {
	config := &Config{
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/architect.db",
		},
		Store: StoreConfig{
			Mode: ModeDocument,
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Generation: GenerationConfig{
			ModelName:   "gemma:2b",
			Temperature: 0.7,
			MaxTokens:   2048,
		},
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	// environment overrides the config file
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}
	if mode := os.Getenv("STORE_MODE"); mode != "" {
		config.Store.Mode = StoreMode(mode)
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}
	if modelName := os.Getenv("MODEL_NAME"); modelName != "" {
		config.Generation.ModelName = modelName
	}
	if temp := os.Getenv("MODEL_TEMPERATURE"); temp != "" {
		if v, err := strconv.ParseFloat(temp, 64); err == nil {
			config.Generation.Temperature = v
		}
	}

	if config.Database.DSN == "" {
		config.Database.DSN = filepath.Join(config.Data.Dir, "architect.db")
	}

	return config
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func UpdateConfig(newCfg *Config) {
	cfg = newCfg
}
