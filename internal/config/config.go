package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Hub struct {
		UpdateInterval time.Duration `mapstructure:"update_interval"`
	} `mapstructure:"hub"`

	Simulator struct {
		Enabled     bool          `mapstructure:"enabled"`
		MinInterval time.Duration `mapstructure:"min_interval"`
		MaxInterval time.Duration `mapstructure:"max_interval"`
	} `mapstructure:"simulator"`

	MQTT struct {
		Enabled   bool   `mapstructure:"enabled"`
		BrokerURL string `mapstructure:"broker_url"`
		Topic     string `mapstructure:"topic"`
		ClientID  string `mapstructure:"client_id"`
	} `mapstructure:"mqtt"`
}

// Load reads config.yaml from the given directory, with environment
// variables overriding file values. A missing file is not an error; the
// defaults describe a workable single-node deployment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Printf("config: no config file found in %s, using defaults", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("hub.update_interval", "10s")
	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.min_interval", "15s")
	v.SetDefault("simulator.max_interval", "45s")
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "traffic/readings")
	v.SetDefault("mqtt.client_id", "trafficd")
}
