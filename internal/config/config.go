package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env     string        `mapstructure:"env"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Server  ServerConfig  `mapstructure:"server"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Backend BackendConfig `mapstructure:"backend"`
}

type AgentConfig struct {
	Name      string `mapstructure:"name"`
	Steps     int    `mapstructure:"steps"`
	StepDelay int    `mapstructure:"step_delay_ms"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type StreamConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
}

type KafkaConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Brokers []string    `mapstructure:"brokers"`
	Topics  KafkaTopics `mapstructure:"topics"`
}

type KafkaTopics struct {
	Logs string `mapstructure:"logs"`
}

type BackendConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
}

func Load() (*Config, error) {

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("local")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Agent defaults
	viper.SetDefault("env", "local")
	viper.SetDefault("agent.name", "ai-taskd-01")
	viper.SetDefault("agent.steps", 4)
	viper.SetDefault("agent.step_delay_ms", 200)

	// Server defaults
	viper.SetDefault("server.port", "8080")

	// Stream defaults
	viper.SetDefault("stream.poll_interval_ms", 500)

	// Kafka defaults (log mirror disabled unless configured)
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.logs", "agent-logs")

	// Backend defaults (completion webhook disabled unless configured)
	viper.SetDefault("backend.enabled", false)
	viper.SetDefault("backend.url", "")
	viper.SetDefault("backend.token", "")
}

func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Stream.PollIntervalMs) * time.Millisecond
}

func (c *Config) GetStepDelay() time.Duration {
	return time.Duration(c.Agent.StepDelay) * time.Millisecond
}
