// Package config loads the environment/options recognized by spec 6 through
// viper, pitaya's own configuration dependency.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config wraps a viper instance with typed accessors for every recognized
// option in spec 6.
type Config struct {
	v *viper.Viper
}

// Defaults, taken verbatim from spec 6's recommendations.
const (
	DefaultRequestTimeoutMs    = 30000
	DefaultHeartbeatIntervalMs = 1000
	DefaultLivenessTimeoutMs   = 5000
	DefaultPurgeTimeoutMs      = 60000
	DefaultSendHWM             = 1000
	DefaultReceiveHWM          = 1000
	DefaultLingerMs            = 1000
	DefaultMaxBodySize         = 2 * 1024 * 1024
	DefaultCompressionThreshold = 512
	DefaultStageType           = "default"
	DefaultHeartbeatTimeoutMs  = 60000
	DefaultMessagesBufferSize  = 100
)

// New builds a Config, reading configPath (if non-empty) and overlaying
// PLAYHOUSE_-prefixed environment variables.
func New(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLAYHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return &Config{v: v}, nil
}

// NewFromViper wraps an already-configured viper instance (used by
// embedding applications that compose their own config tree, mirroring
// pitaya's config.NewConfig(v *viper.Viper) constructor shape).
func NewFromViper(v *viper.Viper) *Config {
	setDefaults(v)
	return &Config{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("requesttimeoutms", DefaultRequestTimeoutMs)
	v.SetDefault("heartbeatintervalms", DefaultHeartbeatIntervalMs)
	v.SetDefault("livenesstimeoutms", DefaultLivenessTimeoutMs)
	v.SetDefault("purgetimeoutms", DefaultPurgeTimeoutMs)
	v.SetDefault("sendhwm", DefaultSendHWM)
	v.SetDefault("receivehwm", DefaultReceiveHWM)
	v.SetDefault("linger", DefaultLingerMs)
	v.SetDefault("maxbodysize", DefaultMaxBodySize)
	v.SetDefault("compressionthreshold", DefaultCompressionThreshold)
	v.SetDefault("defaultstagetype", DefaultStageType)
	v.SetDefault("heartbeattimeoutms", DefaultHeartbeatTimeoutMs)
	v.SetDefault("messagesbuffersize", DefaultMessagesBufferSize)
}

func (c *Config) BindEndpoint() string       { return c.v.GetString("bindendpoint") }
func (c *Config) ServerId() string           { return c.v.GetString("serverid") }
func (c *Config) ServiceType() string        { return c.v.GetString("servicetype") }
func (c *Config) ServiceId() uint16          { return uint16(c.v.GetUint32("serviceid")) }
func (c *Config) AuthenticateMessageId() string { return c.v.GetString("authenticatemessageid") }
func (c *Config) DefaultStageType() string   { return c.v.GetString("defaultstagetype") }
func (c *Config) MaxBodySize() int           { return c.v.GetInt("maxbodysize") }
func (c *Config) CompressionThreshold() int  { return c.v.GetInt("compressionthreshold") }
func (c *Config) SendHWM() int               { return c.v.GetInt("sendhwm") }
func (c *Config) ReceiveHWM() int            { return c.v.GetInt("receivehwm") }
func (c *Config) TcpKeepalive() bool         { return c.v.GetBool("tcpkeepalive") }

// NatsEndpoint is the NATS server URL transport.NatsTransport dials
// (spec 6, "Router transport" options).
func (c *Config) NatsEndpoint() string { return c.v.GetString("natsendpoint") }

// EtcdEndpoints is the comma-separated list of etcd endpoints backing
// registry.EtcdBackend; empty disables cross-restart directory persistence.
func (c *Config) EtcdEndpoints() []string {
	raw := c.v.GetString("etcdendpoints")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// ClientListenEndpoint is the TCP address a Session node's client
// connector binds (spec 2: "Session node — terminates client connections").
func (c *Config) ClientListenEndpoint() string { return c.v.GetString("clientlistenendpoint") }

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.v.GetInt64("requesttimeoutms")) * time.Millisecond
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.v.GetInt64("heartbeatintervalms")) * time.Millisecond
}

func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.v.GetInt64("livenesstimeoutms")) * time.Millisecond
}

func (c *Config) PurgeTimeout() time.Duration {
	return time.Duration(c.v.GetInt64("purgetimeoutms")) * time.Millisecond
}

func (c *Config) Linger() time.Duration {
	return time.Duration(c.v.GetInt64("linger")) * time.Millisecond
}

func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.v.GetInt64("heartbeattimeoutms")) * time.Millisecond
}

func (c *Config) MessagesBufferSize() int { return c.v.GetInt("messagesbuffersize") }
