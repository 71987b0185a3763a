// Package runtimeconfig loads the ambient configuration for wiring an
// AccessProcessor/Analyser/Dispatcher together, adapted from the
// teacher's internal/config.Load: YAML file first, then environment
// variables for any value the file leaves unset, then a set of sane
// defaults.
package runtimeconfig

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every ambient knob the runtime core needs at startup.
// Unlike the teacher's Config, it carries no Postgres/RabbitMQ/LevelDB
// sections — the core keeps no persisted state and uses no external
// broker (see DESIGN.md).
type Config struct {
	Queue      QueueConfig      `yaml:"queue"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
}

// QueueConfig sizes the AccessProcessor's in-process request queue.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// DispatcherConfig sizes the reference dispatch.Pool.
type DispatcherConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queueDepth"`
}

// TimeoutConfig holds default timeouts for blocking accessproc calls,
// expressed in seconds so they round-trip cleanly through YAML and env
// vars the way the teacher's *Timeout fields do.
type TimeoutConfig struct {
	BarrierSeconds  int `yaml:"barrierSeconds"`
	EndOfAppSeconds int `yaml:"endOfAppSeconds"`
}

// Default configuration values, mirroring the teacher's Default* consts.
const (
	DefaultQueueCapacity     = 256
	DefaultDispatcherWorkers = 8
	DefaultDispatchQueueDepth = 256
	DefaultBarrierSeconds    = 300
	DefaultEndOfAppSeconds   = 900
)

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// Load reads configPath (if it exists); every field the file leaves at
// zero is then taken from its environment variable, or from the default
// if that variable is unset or not an integer. A non-zero value from the
// file is not overridden by the environment. Unlike the
// teacher, no environment variable here is mandatory: the core has no
// external dependency that must be reachable before it can start.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("runtimeconfig: read %s: %w", configPath, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("runtimeconfig: parse %s: %w", configPath, err)
			}
		}
	}

	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = getEnvInt("RUNTIMECORE_QUEUE_CAPACITY", DefaultQueueCapacity)
	}
	if cfg.Dispatcher.Workers == 0 {
		cfg.Dispatcher.Workers = getEnvInt("RUNTIMECORE_DISPATCHER_WORKERS", DefaultDispatcherWorkers)
	}
	if cfg.Dispatcher.QueueDepth == 0 {
		cfg.Dispatcher.QueueDepth = getEnvInt("RUNTIMECORE_DISPATCHER_QUEUE_DEPTH", DefaultDispatchQueueDepth)
	}
	if cfg.Timeouts.BarrierSeconds == 0 {
		cfg.Timeouts.BarrierSeconds = getEnvInt("RUNTIMECORE_BARRIER_TIMEOUT_SECONDS", DefaultBarrierSeconds)
	}
	if cfg.Timeouts.EndOfAppSeconds == 0 {
		cfg.Timeouts.EndOfAppSeconds = getEnvInt("RUNTIMECORE_END_OF_APP_TIMEOUT_SECONDS", DefaultEndOfAppSeconds)
	}

	return &cfg, nil
}
