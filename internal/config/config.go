package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	World    WorldConfig    `yaml:"world"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type WorldConfig struct {
	TickRateMs       int     `yaml:"tick_rate_ms"`      // fixed timestep the world loop runs at
	MaxEntities      int     `yaml:"max_entities"`      // must be positive; not enforced by the world or the core
	Width            float64 `yaml:"width"`             // world rectangle x extent
	Height           float64 `yaml:"height"`            // world rectangle y extent
	AOIRadius        float64 `yaml:"aoi_radius"`        // uniform Chebyshev visibility radius
	Backend          string  `yaml:"backend"`           // one of "crosslink", "quadtree", "tower"
	QuadtreeDepth    int     `yaml:"quadtree_depth"`    // informational only: the core fixes D_MAX at 5
	QuadtreeCapacity int     `yaml:"quadtree_capacity"` // informational only: the core splits on first overflow
}

type GatewayConfig struct {
	BindAddr          string `yaml:"bind_addr"`
	ReadBufferSize    int    `yaml:"read_buffer_size"`
	WriteBufferSize   int    `yaml:"write_buffer_size"`
	PingPeriod        int    `yaml:"ping_period"`  // seconds
	PongWait          int    `yaml:"pong_wait"`    // seconds
	WriteWait         int    `yaml:"write_wait"`   // seconds
	MaxMessageSize    int64  `yaml:"max_message_size"`
	EnableCompression bool   `yaml:"enable_compression"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PostgresConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.World.TickRateMs < 10 || c.World.TickRateMs > 200 {
		return fmt.Errorf("world.tick_rate_ms must be between 10-200ms, got %d", c.World.TickRateMs)
	}
	if c.World.MaxEntities < 1 {
		return fmt.Errorf("world.max_entities must be positive, got %d", c.World.MaxEntities)
	}
	if c.World.Width < 0 || c.World.Height < 0 {
		return fmt.Errorf("world.width/height must be >= 0, got %f/%f", c.World.Width, c.World.Height)
	}
	if c.World.AOIRadius < 0 {
		return fmt.Errorf("world.aoi_radius must be >= 0, got %f", c.World.AOIRadius)
	}
	switch c.World.Backend {
	case "crosslink", "quadtree", "tower":
	default:
		return fmt.Errorf("world.backend must be one of crosslink, quadtree, tower, got %q", c.World.Backend)
	}
	if c.Gateway.BindAddr == "" {
		return fmt.Errorf("gateway.bind_addr cannot be empty")
	}
	if c.Gateway.ReadBufferSize <= 0 {
		return fmt.Errorf("gateway.read_buffer_size must be positive, got %d", c.Gateway.ReadBufferSize)
	}
	if c.Gateway.WriteBufferSize <= 0 {
		return fmt.Errorf("gateway.write_buffer_size must be positive, got %d", c.Gateway.WriteBufferSize)
	}
	return nil
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			TickRateMs:       25, // 40Hz
			MaxEntities:      300,
			Width:            2000,
			Height:           2000,
			AOIRadius:        200.0,
			Backend:          "quadtree",
			QuadtreeDepth:    8,
			QuadtreeCapacity: 8,
		},
		Gateway: GatewayConfig{
			BindAddr:          ":8080",
			ReadBufferSize:    1024,
			WriteBufferSize:   1024,
			PingPeriod:        54,
			PongWait:          60,
			WriteWait:         10,
			MaxMessageSize:    512,
			EnableCompression: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "aoi",
			Password:        "password",
			DBName:          "aoi",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
	}
}
