// Package config handles platform configuration
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr             string
	WhisperAddr          string
	OllamaAddr           string
	OllamaModel          string
	DBPath               string
	SampleRate           int
	Channels             int
	ChunkDuration        int // seconds of audio per transcription dispatch
	SummaryInterval      int // minutes between wall-clock-aligned summary runs
	AudioQueueSize       int // frames buffered between capture and consumer
	ExcludedAudioDevices []string
	SilenceArtifacts     []string // engine-specific hallucination phrases, dropped before persistence
}

func Load() *Config {
	return &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8000"),
		WhisperAddr:          getEnv("WHISPER_ADDR", "http://localhost:8080"),
		OllamaAddr:           getEnv("OLLAMA_ADDR", "http://localhost:11434"),
		OllamaModel:          getEnv("OLLAMA_MODEL", "llama3.2"),
		DBPath:               getEnv("DB_PATH", "murmur.sqlite"),
		SampleRate:           getEnvInt("SAMPLE_RATE", 16000),
		Channels:             getEnvInt("CHANNELS", 1),
		ChunkDuration:        getEnvInt("CHUNK_DURATION_SEC", 10),
		SummaryInterval:      getEnvInt("SUMMARY_INTERVAL_MIN", 15),
		AudioQueueSize:       getEnvInt("AUDIO_QUEUE_SIZE", 100),
		ExcludedAudioDevices: getEnvList("EXCLUDED_AUDIO_DEVICES", []string{"iphone", "teams"}),
		SilenceArtifacts: getEnvList("SILENCE_ARTIFACTS", []string{
			"thank you.", "thanks.", "thank you", "thanks", "you",
		}),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
