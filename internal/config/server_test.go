package config

import "testing"

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.SSEPingSecs != 15 {
		t.Fatalf("SSEPingSecs = %d, want 15", cfg.SSEPingSecs)
	}
	if cfg.EventBufferCap != 256 {
		t.Fatalf("EventBufferCap = %d, want 256", cfg.EventBufferCap)
	}
}

func TestLoadServerParseTypes(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SSE_PING_SECONDS", "30")
	t.Setenv("EVENT_BUFFER_CAP", "1024")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer() error = %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.SSEPingSecs != 30 {
		t.Fatalf("SSEPingSecs = %d, want 30", cfg.SSEPingSecs)
	}
	if cfg.EventBufferCap != 1024 {
		t.Fatalf("EventBufferCap = %d, want 1024", cfg.EventBufferCap)
	}
}
