// v0
// config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DeviceEndpoint holds the per-device AC connection details.
type DeviceEndpoint struct {
	BaseURL string
	APIKey  string
}

// AppConfig holds runtime configuration for the control core.
type AppConfig struct {
	HTTPBind string // address:port for the status/health HTTP surface

	Devices         []string                  // configured device names, in iteration order
	DeviceEndpoints map[string]DeviceEndpoint // device name -> AC REST endpoint

	MeterEndpoint   string
	WeatherEndpoint string
	Latitude        float64
	Longitude       float64

	PropertiesPath string

	ControlCycleDefaultMinutes int // T_cycle in minutes, bounded [1,1440] (out of range falls back to 5); the nodeset's Start payload is not consulted
	ManualWatchIntervalSeconds int // T_watch default

	MinOnTimeMinutes  int
	PirTimeoutMinutes int

	DeviceSensorCacheTTL time.Duration
	MeterCacheTTL        time.Duration
	WeatherCacheTTL      time.Duration

	HTTPClientTimeout time.Duration

	KafkaBrokers    []string // optional action-log mirror; empty disables it
	ActionLogTopic  string
	CircuitMaxFails int
	CircuitReset    time.Duration

	NodesetStorePath string // JSON-file-backed default store; see internal/store
}

// LoadEnvAndFiles loads environment variables and the properties file override.
func LoadEnvAndFiles() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPBind:                   getEnv("HTTP_BIND", ":8090"),
		MeterEndpoint:              getEnv("METER_ENDPOINT", ""),
		WeatherEndpoint:            getEnv("WEATHER_ENDPOINT", "https://api.open-meteo.com"),
		Latitude:                   getEnvFloat("LATITUDE", 0),
		Longitude:                  getEnvFloat("LONGITUDE", 0),
		PropertiesPath:             getEnv("PROPERTIES_PATH", "./configs/ctrlcore.properties"),
		ControlCycleDefaultMinutes: 5,
		ManualWatchIntervalSeconds: 10,
		MinOnTimeMinutes:           30,
		PirTimeoutMinutes:          getEnvInt("PIR_TIMEOUT_MINUTES", 15),
		DeviceSensorCacheTTL:       30 * time.Second,
		MeterCacheTTL:              10 * time.Second,
		WeatherCacheTTL:            300 * time.Second,
		HTTPClientTimeout:          30 * time.Second,
		KafkaBrokers:               splitAndTrim(os.Getenv("KAFKA_BROKERS"), ","),
		ActionLogTopic:             getEnv("ACTION_LOG_TOPIC", "ctrlcore.actionlog"),
		CircuitMaxFails:            getEnvInt("CIRCUIT_MAX_FAILS", 5),
		CircuitReset:               time.Duration(getEnvInt("CIRCUIT_RESET_SECONDS", 30)) * time.Second,
		NodesetStorePath:           getEnv("NODESET_STORE_PATH", "./data/nodeset.json"),
		DeviceEndpoints:            map[string]DeviceEndpoint{},
	}

	if err := cfg.loadProperties(cfg.PropertiesPath); err != nil {
		return nil, err
	}
	if len(cfg.Devices) == 0 {
		return nil, errors.New("properties must define devices=<d1,d2,...>")
	}
	for _, d := range cfg.Devices {
		if _, ok := cfg.DeviceEndpoints[d]; !ok {
			return nil, fmt.Errorf("config: missing endpoint.%s / apikey.%s", d, d)
		}
	}
	return cfg, nil
}

// ReloadProperties re-reads the properties file, used by the /nodeset/reload handler.
func (c *AppConfig) ReloadProperties() error {
	return c.loadProperties(c.PropertiesPath)
}

func (c *AppConfig) loadProperties(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open properties file %s: %w", path, err)
	}
	defer file.Close()

	s := bufio.NewScanner(file)
	endpoints := map[string]DeviceEndpoint{}
	var devices []string
	cycleMinutes := c.ControlCycleDefaultMinutes
	if cycleMinutes == 0 {
		cycleMinutes = 5
	}

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)

		switch {
		case k == "devices":
			devices = splitAndTrim(v, ",")
		case k == "meter.endpoint":
			c.MeterEndpoint = v
		case k == "weather.endpoint":
			c.WeatherEndpoint = v
		case k == "control.cycle.minutes":
			if n, err := strconv.Atoi(v); err == nil {
				cycleMinutes = n
			}
		case strings.HasPrefix(k, "endpoint."):
			d := strings.TrimPrefix(k, "endpoint.")
			ep := endpoints[d]
			ep.BaseURL = v
			endpoints[d] = ep
		case strings.HasPrefix(k, "apikey."):
			d := strings.TrimPrefix(k, "apikey.")
			ep := endpoints[d]
			ep.APIKey = v
			endpoints[d] = ep
		default:
			// unknown keys are ignored: forward-compatible with future properties
		}
	}
	if err := s.Err(); err != nil {
		return err
	}

	if len(devices) > 0 {
		c.Devices = devices
	}
	for d, ep := range endpoints {
		c.DeviceEndpoints[d] = ep
	}
	if cycleMinutes < 1 || cycleMinutes > 1440 {
		cycleMinutes = 5
	}
	c.ControlCycleDefaultMinutes = cycleMinutes
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return def
}

func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
