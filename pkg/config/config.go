// Package config loads the settings shared by the producer, the consumer and tablectl.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/srediag/shmtable/pkg/roles"
	"github.com/srediag/shmtable/pkg/sem"
	"github.com/srediag/shmtable/pkg/table"
)

// Prefix is the environment prefix, e.g. SHMTABLE_WAIT_BOUND=500ms.
const Prefix = "SHMTABLE"

// Config holds all process configuration.
type Config struct {
	// Namespace prefixes every named object so that independent pairs can coexist.
	Namespace string `envconfig:"NAMESPACE" default:""`
	TableName string `envconfig:"TABLE_NAME" default:"/producer_consumer_table"`
	MutexName string `envconfig:"MUTEX_NAME" default:"/producer_consumer_mutex"`
	EmptyName string `envconfig:"EMPTY_NAME" default:"/producer_consumer_empty"`
	FullName  string `envconfig:"FULL_NAME" default:"/producer_consumer_full"`
	Perm      uint32 `envconfig:"PERM" default:"438"`

	// MaxItems is the producer target; unset means roles.DefaultMaxItems.
	MaxItems int `envconfig:"MAX_ITEMS"`

	// WaitBound bounds the consumer's wait for an item. It trades shutdown
	// latency against wakeups; it has no effect on correctness.
	WaitBound     time.Duration `envconfig:"WAIT_BOUND" default:"1s"`
	ProduceDelay  time.Duration `envconfig:"PRODUCE_DELAY" default:"1s"`
	ConsumeDelay  time.Duration `envconfig:"CONSUME_DELAY" default:"1500ms"`
	AttachTimeout time.Duration `envconfig:"ATTACH_TIMEOUT" default:"0s"`
	// DrainTimeout is how long the producer waits for the table to drain
	// before it unlinks the named objects.
	DrainTimeout time.Duration `envconfig:"DRAIN_TIMEOUT" default:"5s"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEV" default:"true"`

	// HealthAddr enables the /live, /ready and /metrics endpoints when set.
	HealthAddr string `envconfig:"HEALTH_ADDR" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.MaxItems == 0 {
		cfg.MaxItems = roles.DefaultMaxItems
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		TableName:      table.DefaultName,
		MutexName:      sem.DefaultNames().Mutex,
		EmptyName:      sem.DefaultNames().Empty,
		FullName:       sem.DefaultNames().Full,
		Perm:           0666,
		MaxItems:       roles.DefaultMaxItems,
		WaitBound:      time.Second,
		ProduceDelay:   time.Second,
		ConsumeDelay:   1500 * time.Millisecond,
		DrainTimeout:   5 * time.Second,
		LogLevel:       "info",
		LogDevelopment: true,
	}
}

// Validate reports settings no role can run with. A non-positive MaxItems is
// not an error here; callers fall back to roles.DefaultMaxItems with a warning.
func (c *Config) Validate() error {
	var errs []error
	for field, name := range map[string]string{
		"TABLE_NAME": c.TableName,
		"MUTEX_NAME": c.MutexName,
		"EMPTY_NAME": c.EmptyName,
		"FULL_NAME":  c.FullName,
	} {
		if name == "" || name == "/" {
			errs = append(errs, fmt.Errorf("%s must not be empty", field))
		}
	}
	if c.WaitBound <= 0 {
		errs = append(errs, fmt.Errorf("WAIT_BOUND must be positive, got %s", c.WaitBound))
	}
	if c.ProduceDelay < 0 || c.ConsumeDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if c.AttachTimeout < 0 || c.DrainTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.Perm > 0777 {
		errs = append(errs, fmt.Errorf("PERM %o is not a permission mask", c.Perm))
	}
	return errors.Join(errs...)
}

// TableObjectName returns the table name with the namespace applied.
func (c *Config) TableObjectName() string {
	return sem.Namespaced(c.Namespace, c.TableName)
}

// SemaphoreNames returns the semaphore names with the namespace applied.
func (c *Config) SemaphoreNames() sem.Names {
	return sem.Names{Mutex: c.MutexName, Empty: c.EmptyName, Full: c.FullName}.WithNamespace(c.Namespace)
}

// FileMode returns Perm as a file mode.
func (c *Config) FileMode() os.FileMode {
	return os.FileMode(c.Perm)
}
