// Package config loads the matching core's configuration: a YAML
// file merged with ANVIL_-prefixed environment overrides, defaults
// set in code.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Kafka settings shared by the sarama sink and the feed mirror.
type Kafka struct {
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	FeedTopic string   `mapstructure:"feed_topic"`
}

// Config is the full server configuration.
type Config struct {
	Market   string `mapstructure:"market"`
	BindAddr string `mapstructure:"bind_addr"`

	IngressQueueSize    int `mapstructure:"ingress_queue_size"`
	EventBufferSize     int `mapstructure:"event_buffer_size"`
	EventBatchSize      int `mapstructure:"event_batch_size"`
	EventBatchTimeoutMS int `mapstructure:"event_batch_timeout_ms"`
	DedupWindowSize     int `mapstructure:"dedup_window_size"`
	OrderPoolSize       int `mapstructure:"order_pool_size"`

	// SinkEndpoint selects the gRPC settlement sink when set;
	// otherwise batches go to Kafka.
	SinkEndpoint string `mapstructure:"sink_endpoint"`
	OutboxDir    string `mapstructure:"outbox_dir"`

	Kafka Kafka `mapstructure:"kafka"`
}

// BatchTimeout returns the batch timeout as a duration.
func (c *Config) BatchTimeout() time.Duration {
	return time.Duration(c.EventBatchTimeoutMS) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("market", "BTC-USD")
	v.SetDefault("bind_addr", ":50051")
	v.SetDefault("ingress_queue_size", 1<<20)
	v.SetDefault("event_buffer_size", 1<<16)
	v.SetDefault("event_batch_size", 1000)
	v.SetDefault("event_batch_timeout_ms", 50)
	v.SetDefault("dedup_window_size", 1<<20)
	v.SetDefault("order_pool_size", 1<<16)
	v.SetDefault("sink_endpoint", "localhost:50052")
	v.SetDefault("outbox_dir", "./outbox")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "anvil.events")
	v.SetDefault("kafka.feed_topic", "anvil.feed")
}

// Load reads path (optional; "" skips the file) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ANVIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Market == "":
		return fmt.Errorf("config: market must be set")
	case c.IngressQueueSize <= 0:
		return fmt.Errorf("config: ingress_queue_size must be positive")
	case c.EventBufferSize <= 0 || c.EventBufferSize&(c.EventBufferSize-1) != 0:
		return fmt.Errorf("config: event_buffer_size must be a positive power of two")
	case c.EventBatchSize <= 0:
		return fmt.Errorf("config: event_batch_size must be positive")
	case c.DedupWindowSize <= 0:
		return fmt.Errorf("config: dedup_window_size must be positive")
	case c.OrderPoolSize <= 0:
		return fmt.Errorf("config: order_pool_size must be positive")
	case c.SinkEndpoint == "" && len(c.Kafka.Brokers) == 0:
		return fmt.Errorf("config: need sink_endpoint or kafka.brokers")
	}
	return nil
}
