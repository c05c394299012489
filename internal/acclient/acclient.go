// v0
// acclient.go
package acclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nrg-champ/circuitbreaker"

	"nrgchamp/ctrlcore/internal/domain"
)

// envelope is the AC device's uniform response shape: {success, error, data}.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Sensors is the decoded body of GET /api/sensors: the device's local
// indoor reading plus the two sensor-scoped signals (remote mode and PIR
// motion) that feed the Mode Watcher and PIR Tracker.
type Sensors struct {
	IndoorTempCelsius float64 `json:"indoor_temp_celsius"`
	IsAutoMode        bool    `json:"is_auto_mode"`
	PirTriggered      bool    `json:"pir_triggered"`
}

// Client talks to one AC device's REST surface behind a circuit breaker
// (spec §6): POST /api/ir/off|on|toggle-powerful, GET /api/sensors.
type Client struct {
	device string
	base   string
	apiKey string
	hc     *circuitbreaker.HTTPClient
	log    *slog.Logger
}

// New wires a breaker-guarded client for one device. The breaker's
// half-open probe hits baseURL+"/api/sensors".
func New(device, baseURL, apiKey string, cbCfg circuitbreaker.Config, log *slog.Logger) (*Client, error) {
	probeURL := baseURL + "/api/sensors"
	hc, err := circuitbreaker.NewHTTPClient("ac:"+device, cbCfg, probeURL, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("acclient %s: %w", device, err)
	}
	return &Client{device: device, base: baseURL, apiKey: apiKey, hc: hc, log: log.With(slog.String("device", device))}, nil
}

func (c *Client) Off(ctx context.Context) error {
	return c.postIR(ctx, "/api/ir/off", nil)
}

// On issues a power-on at the given mode, fan speed, setpoint and swing.
func (c *Client) On(ctx context.Context, mode domain.Mode, fan domain.FanSpeed, setpointCelsius float64, swing domain.Swing) error {
	body := map[string]any{
		"mode":       int(mode),
		"fan_speed":  int(fan),
		"setpoint":   setpointCelsius,
		"swing":      int(swing),
	}
	return c.postIR(ctx, "/api/ir/on", body)
}

func (c *Client) TogglePowerful(ctx context.Context) error {
	return c.postIR(ctx, "/api/ir/toggle-powerful", nil)
}

func (c *Client) Sensors(ctx context.Context) (Sensors, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/sensors", nil)
	if err != nil {
		return Sensors{}, err
	}
	c.setAuth(req)
	resp, err := c.hc.Do(req)
	if err != nil {
		return Sensors{}, fmt.Errorf("ac %s sensors: %w", c.device, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return Sensors{}, fmt.Errorf("ac %s sensors: %w", c.device, err)
	}
	var s Sensors
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return Sensors{}, fmt.Errorf("ac %s sensors: malformed data: %w", c.device, err)
	}
	return s, nil
}

func (c *Client) postIR(ctx context.Context, path string, body map[string]any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ac %s %s: %w", c.device, path, err)
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return fmt.Errorf("ac %s %s: %w", c.device, path, err)
	}
	c.log.Debug("ac command ok", slog.String("path", path))
	_ = env
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)
}

func decodeEnvelope(resp *http.Response) (envelope, error) {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		return envelope{}, fmt.Errorf("device reported error: %s", env.Error)
	}
	return env, nil
}
