package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	SSEPingSecs    int `env:"SSE_PING_SECONDS" envDefault:"15"`
	EventBufferCap int `env:"EVENT_BUFFER_CAP" envDefault:"256"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
