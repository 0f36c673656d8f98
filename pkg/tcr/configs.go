package tcr

import (
	"fmt"
	"time"
)

const (
	defaultReconnectInterval   = 1000 // milliseconds
	defaultConnectionTimeout   = 5    // seconds
	defaultHealthCheckInterval = 1000 // milliseconds
	defaultNotificationBuffer  = 1000
)

// RedisSeasoning represents the configuration values.
type RedisSeasoning struct {
	PoolConfig     *PoolConfig     `json:"PoolConfig" yaml:"PoolConfig"`
	NotifierConfig *NotifierConfig `json:"NotifierConfig" yaml:"NotifierConfig"`
	LoggingConfig  *LoggingConfig  `json:"LoggingConfig" yaml:"LoggingConfig"`
}

// PoolConfig represents settings for creating/configuring pools.
type PoolConfig struct {
	ApplicationName      string     `json:"ApplicationName" yaml:"ApplicationName"`
	Host                 string     `json:"Host" yaml:"Host"`                                 // a leading '/' means a unix socket path
	Port                 int        `json:"Port" yaml:"Port"`
	Auth                 string     `json:"Auth" yaml:"Auth"`
	Database             int        `json:"Database" yaml:"Database"`                         // <= 0 issues no SELECT
	MaxConnectionCount   uint64     `json:"MaxConnectionCount" yaml:"MaxConnectionCount"`     // number of slots in the pool
	MaxConnectionRetries uint32     `json:"MaxConnectionRetries" yaml:"MaxConnectionRetries"` // 0 retries forever
	ReconnectInterval    uint32     `json:"ReconnectInterval" yaml:"ReconnectInterval"`       // milliseconds between attempts
	MaxReconnectInterval uint32     `json:"MaxReconnectInterval" yaml:"MaxReconnectInterval"` // enables exponential backoff when > ReconnectInterval
	ConnectionTimeout    uint32     `json:"ConnectionTimeout" yaml:"ConnectionTimeout"`       // seconds
	ReadTimeout          uint32     `json:"ReadTimeout" yaml:"ReadTimeout"`                   // milliseconds, 0 uses the client default
	WriteTimeout         uint32     `json:"WriteTimeout" yaml:"WriteTimeout"`                 // milliseconds, 0 uses the client default
	HealthCheckInterval  uint32     `json:"HealthCheckInterval" yaml:"HealthCheckInterval"`   // milliseconds
	TLSConfig            *TLSConfig `json:"TLSConfig" yaml:"TLSConfig"`
}

// NotifierConfig represents settings for publishing pool notifications to RabbitMQ.
type NotifierConfig struct {
	Enabled            bool               `json:"Enabled" yaml:"Enabled"`
	URI                string             `json:"URI" yaml:"URI"`
	Exchange           string             `json:"Exchange" yaml:"Exchange"`
	ExchangeTopology   *Exchange          `json:"ExchangeTopology" yaml:"ExchangeTopology"` // declared on connect when set
	RoutingKey         string             `json:"RoutingKey" yaml:"RoutingKey"`
	Heartbeat          uint32             `json:"Heartbeat" yaml:"Heartbeat"`                   // seconds
	ConnectionTimeout  uint32             `json:"ConnectionTimeout" yaml:"ConnectionTimeout"`   // seconds
	NotificationBuffer uint32             `json:"NotificationBuffer" yaml:"NotificationBuffer"` // queued notifications before dropping
	CompressionConfig  *CompressionConfig `json:"CompressionConfig" yaml:"CompressionConfig"`
	EncryptionConfig   *EncryptionConfig  `json:"EncryptionConfig" yaml:"EncryptionConfig"`
	TLSConfig          *TLSConfig         `json:"TLSConfig" yaml:"TLSConfig"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level     string `json:"Level" yaml:"Level"`
	Format    string `json:"Format" yaml:"Format"` // json or text
	AddSource bool   `json:"AddSource" yaml:"AddSource"`
}

// CompressionConfig allows you to configuration compression based on options
type CompressionConfig struct {
	Enabled bool   `json:"Enabled" yaml:"Enabled"`
	Type    string `json:"Type,omitempty" yaml:"Type,omitempty"`
}

// EncryptionConfig allows you to configuration symmetric key encryption based on options
type EncryptionConfig struct {
	Enabled           bool   `json:"Enabled" yaml:"Enabled"`
	Type              string `json:"Type,omitempty" yaml:"Type,omitempty"`
	Passphrase        string `json:"Passphrase,omitempty" yaml:"Passphrase,omitempty"`
	Salt              string `json:"Salt,omitempty" yaml:"Salt,omitempty"`
	TimeConsideration uint32 `json:"TimeConsideration,omitempty" yaml:"TimeConsideration,omitempty"`
	MemoryMultiplier  uint32 `json:"MemoryMultiplier,omitempty" yaml:"MemoryMultiplier,omitempty"`
	Threads           uint8  `json:"Threads,omitempty" yaml:"Threads,omitempty"`
	Hashkey           []byte `json:"-" yaml:"-"`
}

// Endpoint returns the address of the remote service described by the config.
func (pc *PoolConfig) Endpoint() Endpoint {
	return Endpoint{Host: pc.Host, Port: pc.Port}
}

// Validate checks the config can build a pool.
func (pc *PoolConfig) Validate() error {
	if pc.Host == "" {
		return fmt.Errorf("%w: host can't be blank", ErrInvalidConfig)
	}

	if !pc.Endpoint().IsUnix() && (pc.Port <= 0 || pc.Port > 65535) {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, pc.Port)
	}

	if pc.TLSConfig != nil && pc.TLSConfig.EnableTLS && pc.TLSConfig.PEMCertLocation == "" {
		return fmt.Errorf("%w: tls needs a pem cert location", ErrInvalidConfig)
	}

	if pc.MaxReconnectInterval > 0 && pc.MaxReconnectInterval < pc.ReconnectInterval {
		return fmt.Errorf("%w: maxreconnectinterval can't be below reconnectinterval", ErrInvalidConfig)
	}

	return nil
}

func (pc *PoolConfig) reconnectInterval() time.Duration {
	if pc.ReconnectInterval == 0 {
		return defaultReconnectInterval * time.Millisecond
	}

	return time.Duration(pc.ReconnectInterval) * time.Millisecond
}

func (pc *PoolConfig) maxReconnectInterval() time.Duration {
	return time.Duration(pc.MaxReconnectInterval) * time.Millisecond
}

func (pc *PoolConfig) connectionTimeout() time.Duration {
	if pc.ConnectionTimeout == 0 {
		return defaultConnectionTimeout * time.Second
	}

	return time.Duration(pc.ConnectionTimeout) * time.Second
}

func (pc *PoolConfig) healthCheckInterval() time.Duration {
	if pc.HealthCheckInterval == 0 {
		return defaultHealthCheckInterval * time.Millisecond
	}

	return time.Duration(pc.HealthCheckInterval) * time.Millisecond
}

// Validate checks the notifier can reach a broker and build its payloads.
func (nc *NotifierConfig) Validate() error {
	if nc.URI == "" {
		return fmt.Errorf("%w: notifier uri can't be blank", ErrInvalidConfig)
	}

	if nc.Exchange == "" && nc.RoutingKey == "" {
		return fmt.Errorf("%w: notifier needs an exchange or routing key", ErrInvalidConfig)
	}

	return nc.validatePayload()
}

func (nc *NotifierConfig) validatePayload() error {
	if compression := nc.CompressionConfig; compression != nil && compression.Enabled {
		switch compression.Type {
		case "", GzipCompressionType, ZstdCompressionType:
		default:
			return fmt.Errorf("%w: unknown compression type %q", ErrInvalidConfig, compression.Type)
		}
	}

	if encryption := nc.EncryptionConfig; encryption != nil && encryption.Enabled {
		if encryption.Type != "" && encryption.Type != AesSymmetricType {
			return fmt.Errorf("%w: unknown encryption type %q", ErrInvalidConfig, encryption.Type)
		}

		if len(encryption.Hashkey) == 0 && (encryption.Passphrase == "" || encryption.Salt == "") {
			return fmt.Errorf("%w: encryption needs a passphrase and a salt", ErrInvalidConfig)
		}
	}

	return nil
}
