package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	World     WorldConfig     `toml:"world"`
	Chat      ChatConfig      `toml:"chat"`
	Session   SessionConfig   `toml:"session"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name        string        `toml:"name"`
	BindAddress string        `toml:"bind_address"`
	ReadTimeout time.Duration `toml:"read_timeout"`
	// WriteTimeout must exceed PollWaitMax or the HTTP server cuts the
	// connection before a long-poll can return.
	WriteTimeout time.Duration `toml:"write_timeout"`
	PollWaitMax  time.Duration `toml:"poll_wait_max"`
	StartTime    int64         // set at boot, not from config
}

type WorldConfig struct {
	PackDir           string        `toml:"pack_dir"`
	ScriptsDir        string        `toml:"scripts_dir"`
	DataDir           string        `toml:"data_dir"`
	TickRate          time.Duration `toml:"tick_rate"`
	MaxOccupancy      int           `toml:"max_occupancy"`
	IntentQueueSize   int           `toml:"intent_queue_size"`
	InteractionRadius float64       `toml:"interaction_radius"`
	ProximityRadius   float64       `toml:"proximity_radius"`
	PathMaxNodes      int           `toml:"path_max_nodes"`
	EventRingSize     int           `toml:"event_ring_size"`
	EventTTL          time.Duration `toml:"event_ttl"`
}

type ChatConfig struct {
	RingSize      int `toml:"ring_size"`
	MaxMessageLen int `toml:"max_message_len"`
}

type SessionConfig struct {
	Timeout          time.Duration `toml:"timeout"`
	HeartbeatTimeout time.Duration `toml:"heartbeat_timeout"`
	IdempotencyTTL   time.Duration `toml:"idempotency_ttl"`
	// ReconnectWindow is how long a session survives after its entity
	// times out of the room. Must exceed Timeout or a reconnect could
	// never respawn.
	ReconnectWindow time.Duration `toml:"reconnect_window"`
}

type RateLimitConfig struct {
	Enabled bool `toml:"enabled"`

	ObservationPerSec float64 `toml:"observation_per_sec"`
	ObservationBurst  float64 `toml:"observation_burst"`
	ActionPerSec      float64 `toml:"action_per_sec"`
	ActionBurst       float64 `toml:"action_burst"`
	ChatPerSec        float64 `toml:"chat_per_sec"`
	ChatBurst         float64 `toml:"chat_burst"`
	EventsPerSec      float64 `toml:"events_per_sec"`
	EventsBurst       float64 `toml:"events_burst"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:         "tilemud",
			BindAddress:  "0.0.0.0:8400",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 35 * time.Second,
			PollWaitMax:  25 * time.Second,
		},
		World: WorldConfig{
			PackDir:           "pack",
			ScriptsDir:        "scripts",
			DataDir:           "data/yaml",
			TickRate:          100 * time.Millisecond,
			MaxOccupancy:      64,
			IntentQueueSize:   4096,
			InteractionRadius: 64,
			ProximityRadius:   128,
			PathMaxNodes:      20000,
			EventRingSize:     1000,
			EventTTL:          60 * time.Second,
		},
		Chat: ChatConfig{
			RingSize:      1000,
			MaxMessageLen: 500,
		},
		Session: SessionConfig{
			Timeout:          90 * time.Second,
			HeartbeatTimeout: 5 * time.Second,
			IdempotencyTTL:   10 * time.Minute,
			ReconnectWindow:  15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			ObservationPerSec: 20,
			ObservationBurst:  40,
			ActionPerSec:      10,
			ActionBurst:       20,
			ChatPerSec:        5,
			ChatBurst:         10,
			EventsPerSec:      10,
			EventsBurst:       20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
