// Package config loads service settings in layers: struct defaults, an
// optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names the YAML file to layer between defaults and env.
const PathEnvVar = "CONFIG_PATH"

type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Log       LogConfig       `koanf:"log"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Cache     CacheConfig     `koanf:"cache"`
	Recommend RecommendConfig `koanf:"recommend"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	Auth      AuthConfig      `koanf:"auth"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Gateway   GatewayConfig   `koanf:"gateway"`
}

type HTTPConfig struct {
	Port int `koanf:"port" validate:"min=1,max=65535"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type CatalogConfig struct {
	// URL is the catalog listing service the recommend service reads from.
	URL         string        `koanf:"url" validate:"required,url"`
	DatabaseURL string        `koanf:"database_url"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
}

type CacheConfig struct {
	TTL         time.Duration `koanf:"ttl" validate:"gt=0"`
	MaxItems    int           `koanf:"max_items" validate:"min=1,max=250"`
	Key         string        `koanf:"key" validate:"required"`
	PersistPath string        `koanf:"persist_path"`
}

type RecommendConfig struct {
	Limit        int `koanf:"limit" validate:"min=1,max=50"`
	DiversityCap int `koanf:"diversity_cap" validate:"min=1"`
}

type BreakerConfig struct {
	MaxRequests uint32        `koanf:"max_requests" validate:"min=1"`
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests uint32        `koanf:"min_requests" validate:"min=1"`
	// FailureRatio trips the breaker once MinRequests have been seen.
	FailureRatio float64 `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   string `koanf:"token"`
}

type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" validate:"gt=0"`
	Burst int     `koanf:"burst" validate:"min=1"`
}

type GatewayConfig struct {
	CatalogURL   string `koanf:"catalog_url" validate:"required,url"`
	RecommendURL string `koanf:"recommend_url" validate:"required,url"`
}

func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: 8080},
		Log:  LogConfig{Level: "info"},
		Catalog: CatalogConfig{
			URL:     "http://localhost:8082",
			Timeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			TTL:      30 * time.Minute,
			MaxItems: 250,
			Key:      "catalog:snapshot:v1",
		},
		Recommend: RecommendConfig{
			Limit:        6,
			DiversityCap: 2,
		},
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  5,
			FailureRatio: 0.6,
		},
		Metrics: MetricsConfig{Enabled: true},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
		Gateway: GatewayConfig{
			CatalogURL:   "http://catalog:8082",
			RecommendURL: "http://recommend:8084",
		},
	}
}

// Load layers defaults, the file named by CONFIG_PATH, and the environment.
// HTTP_PORT maps to http.port, CACHE_PERSIST_PATH to cache.persist_path; the
// first underscore separates section from key.
func Load() (*Config, error) {
	return load(os.Getenv(PathEnvVar), Defaults())
}

// LoadWithDefaults is Load with per-service defaults, e.g. a different port.
func LoadWithDefaults(defaults *Config) (*Config, error) {
	return load(os.Getenv(PathEnvVar), defaults)
}

func load(path string, defaults *Config) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var sections = map[string]bool{
	"http": true, "log": true, "catalog": true, "cache": true, "recommend": true,
	"breaker": true, "auth": true, "metrics": true, "ratelimit": true, "gateway": true,
}

// envKey maps SECTION_SOME_KEY to section.some_key. Variables outside the
// known sections are dropped so unrelated env does not leak into config.
func envKey(key string) string {
	key = strings.ToLower(key)
	section, rest, ok := strings.Cut(key, "_")
	if !ok || !sections[section] || rest == "" {
		return ""
	}
	return section + "." + rest
}

func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
