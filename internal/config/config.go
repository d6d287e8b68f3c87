package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	ExchangeURL       string
	ExchangeTransport string // "http" or "ws"
	ExchangeAccessKey string
	ExchangeTimeout   time.Duration

	RecordingCeiling    time.Duration
	ContinuationWindow  time.Duration
	ContinuationEnabled bool
	ErrorDisplay        time.Duration

	CaptureDevice string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	exchangeURL := os.Getenv("EXCHANGE_URL")
	if exchangeURL == "" {
		log.Println("Warning: EXCHANGE_URL not set - exchanges will fail until configured")
	}
	transport := strings.ToLower(os.Getenv("EXCHANGE_TRANSPORT"))
	if transport == "" {
		transport = inferTransport(exchangeURL)
	}
	if transport != "http" && transport != "ws" {
		log.Printf("Warning: unknown EXCHANGE_TRANSPORT %q - falling back to http", transport)
		transport = "http"
	}

	accessKey := os.Getenv("EXCHANGE_ACCESS_KEY")
	if accessKey == "" {
		log.Println("Warning: EXCHANGE_ACCESS_KEY not set - remote may reject exchanges")
	}

	cfg := Config{
		HTTPAddress:         addr,
		ExchangeURL:         exchangeURL,
		ExchangeTransport:   transport,
		ExchangeAccessKey:   accessKey,
		ExchangeTimeout:     durationMs("EXCHANGE_TIMEOUT_MS", 20000),
		RecordingCeiling:    durationMs("RECORDING_CEILING_MS", 30000),
		ContinuationWindow:  durationMs("CONTINUATION_WINDOW_MS", 15000),
		ContinuationEnabled: boolEnv("CONTINUATION_ENABLED", true),
		ErrorDisplay:        durationMs("ERROR_DISPLAY_MS", 8000),
		CaptureDevice:       os.Getenv("CAPTURE_DEVICE"),
	}

	log.Printf("config: HTTP_ADDRESS=%s transport=%s ceiling=%s window=%s continuation=%v",
		cfg.HTTPAddress, cfg.ExchangeTransport, cfg.RecordingCeiling, cfg.ContinuationWindow, cfg.ContinuationEnabled)
	return cfg
}

func inferTransport(url string) string {
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return "ws"
	}
	return "http"
}

func durationMs(key string, def int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		log.Printf("Warning: invalid %s=%q - using default %dms", key, v, def)
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q - using default %v", key, v, def)
		return def
	}
	return b
}
