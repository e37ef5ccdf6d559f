package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Sequencer
	Variant  string // flat or roll
	Tempo    int    // beats per minute
	Timbre   string
	CellSize float64       // piano-roll cell width in pixels, for resize drags
	IdleTTL  time.Duration // resize sessions idle longer than this are dropped

	// MIDI output (optional)
	MIDIPort    string
	MIDIChannel int
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("CHIP_PORT", 8080),

		Variant:  envStr("CHIP_VARIANT", "flat"),
		Tempo:    envInt("CHIP_TEMPO", 120),
		Timbre:   envStr("CHIP_TIMBRE", "sine"),
		CellSize: envFloat("CHIP_CELL_SIZE", 32),
		IdleTTL:  time.Duration(envInt("CHIP_RESIZE_TTL", 30)) * time.Second,

		MIDIPort:    envStr("CHIP_MIDI_PORT", ""),
		MIDIChannel: envInt("CHIP_MIDI_CHANNEL", 1),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
