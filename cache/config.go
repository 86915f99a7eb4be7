package cache

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// KeySeparator separates the segments of a relation cache key
const KeySeparator = "::"

var validate = validator.New()

// Config configures the sturdyc client backing a RelationsCache
type Config struct {
	// Capacity maximum number of relation results held
	Capacity int `validate:"gt=0"`
	// NumShards number of sturdyc shards, the capacity is spread over them
	NumShards int `validate:"gt=0"`
	// TTL relation results expire after TTL even when no invalidation happened
	TTL time.Duration `validate:"gt=0"`
	// EvictionPercentage share of a full shard evicted at once
	EvictionPercentage int `validate:"min=1,max=100"`
}

// DefaultConfig returns a Config suitable for most workloads
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          16,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ConfigError a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "cache: config error in field " + e.Field + ": " + e.Message
}

// Validate checks the configuration values
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := "must satisfy " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		return &ConfigError{Field: fe.Field(), Message: strings.TrimSpace(msg)}
	}
	return err
}
