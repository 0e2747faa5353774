package config

import "testing"

func setChainEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8899")
	t.Setenv("CHAIN_WS_URL", "ws://localhost:8900")
	t.Setenv("CHAIN_PROGRAM_ID", "RouLetteProgram1111111111111111111111111111")
}

func TestLoadChain(t *testing.T) {
	setChainEnv(t)
	t.Setenv("PLAYER_ADDRESS", "PLaYer111111111111111111111111111111111111")

	cfg, err := LoadChain()
	if err != nil {
		t.Fatalf("LoadChain() error = %v", err)
	}
	if cfg.RPCURL != "http://localhost:8899" {
		t.Fatalf("RPCURL = %q", cfg.RPCURL)
	}
	if cfg.WSURL != "ws://localhost:8900" {
		t.Fatalf("WSURL = %q", cfg.WSURL)
	}
	if cfg.PlayerAddress != "PLaYer111111111111111111111111111111111111" {
		t.Fatalf("PlayerAddress = %q", cfg.PlayerAddress)
	}
}

func TestLoadChainRequiresProgramID(t *testing.T) {
	setChainEnv(t)
	t.Setenv("CHAIN_PROGRAM_ID", "")

	_, err := LoadChain()
	if err == nil {
		t.Fatal("LoadChain() expected error, got nil")
	}
}

func TestLoadChainSpectatorMode(t *testing.T) {
	setChainEnv(t)

	cfg, err := LoadChain()
	if err != nil {
		t.Fatalf("LoadChain() error = %v", err)
	}
	if cfg.PlayerAddress != "" {
		t.Fatalf("PlayerAddress = %q, want empty", cfg.PlayerAddress)
	}
}
