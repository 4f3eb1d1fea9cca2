package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// City identifies a WG-Gesucht city for the live scraper.
type City struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

// Config holds all pipeline configuration. Values come from the environment
// (optionally a .env file) and may be overridden by a YAML file.
type Config struct {
	Source       string   `yaml:"source"`
	DatasetPath  string   `yaml:"dataset_path"`
	TargetCities []string `yaml:"target_cities"`
	SampleLimit  int      `yaml:"sample_limit"`
	SampleSeed   int64    `yaml:"sample_seed"`

	LiveCities     []City `yaml:"live_cities"`
	PagesPerCity   int    `yaml:"pages_per_city"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	RateLimitMs    int    `yaml:"rate_limit_ms"`
	MaxRetries     int    `yaml:"max_retries"`
	ChromeBin      string `yaml:"chrome_bin"`

	DataDir  string `yaml:"data_dir"`
	ModelDir string `yaml:"model_dir"`

	RentMin       float64 `yaml:"rent_min"`
	RentMax       float64 `yaml:"rent_max"`
	SizeMin       float64 `yaml:"size_min"`
	SizeMax       float64 `yaml:"size_max"`
	TrainFraction float64 `yaml:"train_fraction"`
	SplitSeed     int64   `yaml:"split_seed"`

	ANNHidden          []int   `yaml:"ann_hidden"`
	ANNEpochs          int     `yaml:"ann_epochs"`
	ANNBatchSize       int     `yaml:"ann_batch_size"`
	ANNLearningRate    float64 `yaml:"ann_learning_rate"`
	ANNValidationSplit float64 `yaml:"ann_validation_split"`
	ANNSeed            int64   `yaml:"ann_seed"`

	PostgresEnabled  bool   `yaml:"postgres_enabled"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresDB       string `yaml:"postgres_db"`
	PostgresSSLMode  string `yaml:"postgres_sslmode"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Source:      getEnv("SOURCE", "dataset"),
		DatasetPath: getEnv("DATASET_PATH", "./data/immo_data.csv"),
		TargetCities: getEnvList("TARGET_CITIES",
			[]string{"Potsdam", "Berlin", "München", "Hamburg", "Köln", "Frankfurt am Main"}),
		SampleLimit: getEnvInt("SAMPLE_LIMIT", 2000),
		SampleSeed:  getEnvInt64("SAMPLE_SEED", 42),

		LiveCities:     getEnvCities("LIVE_CITIES", []City{{108, "Potsdam"}, {8, "Berlin"}, {9387, "Werder_Havel"}}),
		PagesPerCity:   getEnvInt("PAGES_PER_CITY", 5),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		DataDir:  getEnv("DATA_DIR", "./data"),
		ModelDir: getEnv("MODEL_DIR", "./model_output"),

		RentMin:       getEnvFloat("RENT_MIN", 100),
		RentMax:       getEnvFloat("RENT_MAX", 2000),
		SizeMin:       getEnvFloat("SIZE_MIN", 8),
		SizeMax:       getEnvFloat("SIZE_MAX", 80),
		TrainFraction: getEnvFloat("TRAIN_FRACTION", 0.8),
		SplitSeed:     getEnvInt64("SPLIT_SEED", 2026),

		ANNHidden:          getEnvInts("ANN_HIDDEN", []int{64, 64}),
		ANNEpochs:          getEnvInt("ANN_EPOCHS", 100),
		ANNBatchSize:       getEnvInt("ANN_BATCH_SIZE", 32),
		ANNLearningRate:    getEnvFloat("ANN_LEARNING_RATE", 0.001),
		ANNValidationSplit: getEnvFloat("ANN_VALIDATION_SPLIT", 0.2),
		ANNSeed:            getEnvInt64("ANN_SEED", 7),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "radar"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "radar123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rent_radar"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// LoadFile loads the environment config and then applies the YAML file at
// path on top of it. An empty path skips the overlay.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Source {
	case "dataset", "live":
	default:
		return fmt.Errorf("config: unknown source %q (want dataset or live)", c.Source)
	}
	if c.RentMin >= c.RentMax {
		return fmt.Errorf("config: rent bounds %v..%v are empty", c.RentMin, c.RentMax)
	}
	if c.SizeMin >= c.SizeMax {
		return fmt.Errorf("config: size bounds %v..%v are empty", c.SizeMin, c.SizeMax)
	}
	if c.TrainFraction <= 0 || c.TrainFraction > 1 {
		return fmt.Errorf("config: train fraction %v must be in (0,1]", c.TrainFraction)
	}
	if c.ANNValidationSplit < 0 || c.ANNValidationSplit >= 1 {
		return fmt.Errorf("config: validation split %v must be in [0,1)", c.ANNValidationSplit)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func (c *Config) RawPath() string         { return filepath.Join(c.DataDir, "raw_scraped_data.csv") }
func (c *Config) JointPath() string       { return filepath.Join(c.DataDir, "joint_data_collection.csv") }
func (c *Config) TrainPath() string       { return filepath.Join(c.DataDir, "training_data.csv") }
func (c *Config) TestPath() string        { return filepath.Join(c.DataDir, "test_data.csv") }
func (c *Config) ActivationPath() string  { return filepath.Join(c.DataDir, "activation_data.csv") }
func (c *Config) ScalerPath() string      { return filepath.Join(c.DataDir, "scaler.json") }
func (c *Config) PredictionsPath() string { return filepath.Join(c.DataDir, "predictions.csv") }

func (c *Config) ANNModelPath() string { return filepath.Join(c.ModelDir, "currentAiSolution.json") }
func (c *Config) OLSModelPath() string { return filepath.Join(c.ModelDir, "currentOlsSolution.json") }

// DiagnosticsPath names a diagnostics CSV written next to the models.
func (c *Config) DiagnosticsPath(name string) string {
	return filepath.Join(c.ModelDir, "diagnostics", name+".csv")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvInts(key string, fallback []int) []int {
	parts := getEnvList(key, nil)
	if parts == nil {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return fallback
		}
		out = append(out, n)
	}
	return out
}

// getEnvCities parses "Name:ID,Name:ID".
func getEnvCities(key string, fallback []City) []City {
	parts := getEnvList(key, nil)
	if parts == nil {
		return fallback
	}
	out := make([]City, 0, len(parts))
	for _, p := range parts {
		name, id, ok := strings.Cut(p, ":")
		if !ok {
			return fallback
		}
		n, err := strconv.Atoi(strings.TrimSpace(id))
		if err != nil {
			return fallback
		}
		out = append(out, City{ID: n, Name: strings.TrimSpace(name)})
	}
	return out
}
