package config

import "github.com/spf13/viper"

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Auth struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"auth"`
	Collab struct {
		TypingTTLMs  int  `mapstructure:"typingTTLMs"`
		PresenceTTLS int  `mapstructure:"presenceTTLSeconds"`
		EvictOnIdle  bool `mapstructure:"evictOnIdle"`
	} `mapstructure:"collab"`
}

// Load reads serverConfig.yaml; paths cover starting from the repo root or
// from backend/.
func Load() (*Config, error) {
	cfg := &Config{}
	v := viper.New()
	v.SetConfigName("serverConfig")
	v.SetConfigType("yaml")
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetDefault("collab.typingTTLMs", 3000)
	v.SetDefault("collab.presenceTTLSeconds", 600)
	v.SetDefault("collab.evictOnIdle", true)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
