package activeobjects

import (
	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/migrator"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// Config entity manager config
type Config struct {
	// Logger receives every statement and the relation cache consistency warnings
	Logger logger.Interface
	// NamingStrategy derives table, column, index and constraint names
	NamingStrategy schema.Namer
	// Types maps semantic field types to database types, each manager owns its registry
	Types *types.Registry
	// TypeMapper maps polymorphic subtypes to the flag stored in type columns
	TypeMapper schema.TypeMapper
	// RelationsCache sizes the cache of to-many relation results
	RelationsCache cache.Config
	// Migration destructive changes Migrate is allowed to plan
	Migration migrator.Options
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logger.Default
	}
	if c.NamingStrategy == nil {
		c.NamingStrategy = schema.NamingStrategy{}
	}
	if c.Types == nil {
		c.Types = types.NewRegistry()
	}
	if c.TypeMapper == nil {
		c.TypeMapper = schema.NewTypeMapper(nil)
	}
	if c.RelationsCache == (cache.Config{}) {
		c.RelationsCache = cache.DefaultConfig()
	}
}
