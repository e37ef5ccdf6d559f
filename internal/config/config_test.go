package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	envVars := []string{
		"CHIP_PORT", "CHIP_VARIANT", "CHIP_TEMPO", "CHIP_TIMBRE",
		"CHIP_CELL_SIZE", "CHIP_RESIZE_TTL", "CHIP_MIDI_PORT", "CHIP_MIDI_CHANNEL",
	}
	for _, k := range envVars {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Variant != "flat" {
		t.Errorf("Variant = %q, want 'flat'", cfg.Variant)
	}
	if cfg.Tempo != 120 {
		t.Errorf("Tempo = %d, want 120", cfg.Tempo)
	}
	if cfg.Timbre != "sine" {
		t.Errorf("Timbre = %q, want 'sine'", cfg.Timbre)
	}
	if cfg.CellSize != 32 {
		t.Errorf("CellSize = %f, want 32", cfg.CellSize)
	}
	if cfg.IdleTTL != 30*time.Second {
		t.Errorf("IdleTTL = %v, want 30s", cfg.IdleTTL)
	}
	if cfg.MIDIPort != "" {
		t.Errorf("MIDIPort = %q, want empty default", cfg.MIDIPort)
	}
	if cfg.MIDIChannel != 1 {
		t.Errorf("MIDIChannel = %d, want 1", cfg.MIDIChannel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHIP_PORT", "3000")
	t.Setenv("CHIP_VARIANT", "roll")
	t.Setenv("CHIP_TEMPO", "90")
	t.Setenv("CHIP_TIMBRE", "square")
	t.Setenv("CHIP_CELL_SIZE", "24")
	t.Setenv("CHIP_RESIZE_TTL", "5")
	t.Setenv("CHIP_MIDI_PORT", "IAC Driver Bus 1")
	t.Setenv("CHIP_MIDI_CHANNEL", "10")

	cfg := Load()

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Variant != "roll" {
		t.Errorf("Variant = %q, want 'roll'", cfg.Variant)
	}
	if cfg.Tempo != 90 {
		t.Errorf("Tempo = %d, want 90", cfg.Tempo)
	}
	if cfg.Timbre != "square" {
		t.Errorf("Timbre = %q, want 'square'", cfg.Timbre)
	}
	if cfg.CellSize != 24 {
		t.Errorf("CellSize = %f, want 24", cfg.CellSize)
	}
	if cfg.IdleTTL != 5*time.Second {
		t.Errorf("IdleTTL = %v, want 5s", cfg.IdleTTL)
	}
	if cfg.MIDIPort != "IAC Driver Bus 1" {
		t.Errorf("MIDIPort = %q, want env override", cfg.MIDIPort)
	}
	if cfg.MIDIChannel != 10 {
		t.Errorf("MIDIChannel = %d, want 10", cfg.MIDIChannel)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("CHIP_PORT", "not-a-number")
	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("Invalid int env should fallback to default: got %d, want 8080", cfg.Port)
	}
}

func TestEnvTempoInvalidFallsBack(t *testing.T) {
	t.Setenv("CHIP_TEMPO", "fast")
	cfg := Load()
	if cfg.Tempo != 120 {
		t.Errorf("Invalid tempo env should fallback to default: got %d, want 120", cfg.Tempo)
	}
}
