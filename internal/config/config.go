package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// OpTimeout bounds every store call made by the delivery pipeline.
	OpTimeout time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`

	// TypingTTL is how long a typing signal stays valid without a refresh;
	// TypingSweepInterval is how often stale entries are expired.
	TypingTTL           time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	TypingSweepInterval time.Duration `mapstructure:"typing_sweep_interval" yaml:"typing_sweep_interval"`

	// SendBuffer is the per-connection outbound event buffer. A connection
	// that falls this far behind is dropped.
	SendBuffer int `mapstructure:"send_buffer" yaml:"send_buffer"`

	// RedisAddr, when set, switches the presence tracker to a redis-backed
	// store shared across processes. Empty means in-memory.
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`

	LiveKit LiveKitConfig `mapstructure:"livekit" yaml:"livekit"`
}

// LiveKitConfig holds credentials for minting voice channel join tokens.
type LiveKitConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	URL       string `mapstructure:"url" yaml:"url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8080",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		LogLevel:            "info",
		DatabasePath:        "naserchat.db",
		JWTIssuer:           "naser-chat",
		JWTAudience:         "naser-chat-clients",
		OpTimeout:           5 * time.Second,
		TypingTTL:           5 * time.Second,
		TypingSweepInterval: 10 * time.Second,
		SendBuffer:          64,
	}
}
