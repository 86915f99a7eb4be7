package activeobjects

import (
	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/migrator"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// Option use functional option for the entity manager Config.
type Option func(c *Config)

// WithLogger set logger.
func WithLogger(logger logger.Interface) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithNamingStrategy set schema namer.
func WithNamingStrategy(namer schema.Namer) Option {
	return func(c *Config) {
		c.NamingStrategy = namer
	}
}

// WithTypes set the type registry, e.g. one holding custom types.
func WithTypes(registry *types.Registry) Option {
	return func(c *Config) {
		c.Types = registry
	}
}

// WithTypeMapper set the polymorphic type mapper.
func WithTypeMapper(mapper schema.TypeMapper) Option {
	return func(c *Config) {
		c.TypeMapper = mapper
	}
}

// WithRelationsCache set the relations cache size and expiry.
func WithRelationsCache(config cache.Config) Option {
	return func(c *Config) {
		c.RelationsCache = config
	}
}

// WithMigrationOptions allow Migrate to drop tables, columns or foreign keys.
func WithMigrationOptions(opts migrator.Options) Option {
	return func(c *Config) {
		c.Migration = opts
	}
}
