package config

import "github.com/caarlos0/env/v11"

type ChainConfig struct {
	RPCURL    string `env:"CHAIN_RPC_URL,required,notEmpty"`
	WSURL     string `env:"CHAIN_WS_URL,required,notEmpty"`
	ProgramID string `env:"CHAIN_PROGRAM_ID,required,notEmpty"`

	// PlayerAddress enables bet tracking and win notifications for one
	// identity; empty runs the view in spectator mode.
	PlayerAddress string `env:"PLAYER_ADDRESS"`
}

func LoadChain() (ChainConfig, error) {
	var cfg ChainConfig
	err := env.Parse(&cfg)
	return cfg, err
}
