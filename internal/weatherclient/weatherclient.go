// v0
// weatherclient.go
package weatherclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nrg-champ/circuitbreaker"
)

// Forecast is the subset of an Open-Meteo-shaped response this client
// needs: one current temperature plus 24 hourly forecast points.
type Forecast struct {
	CurrentTempCelsius    float64
	AvgNext24hTempCelsius float64
	TrendCelsius          float64 // AvgNext24hTempCelsius - CurrentTempCelsius
}

type apiResponse struct {
	Current struct {
		Temperature2m float64 `json:"temperature_2m"`
	} `json:"current"`
	Hourly struct {
		Temperature2m []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// Client talks to a weather provider shaped like Open-Meteo, behind a
// circuit breaker (spec §6).
type Client struct {
	base      string
	latitude  float64
	longitude float64
	hc        *circuitbreaker.HTTPClient
}

func New(baseURL string, latitude, longitude float64, cbCfg circuitbreaker.Config) (*Client, error) {
	probeURL := fmt.Sprintf("%s?latitude=%g&longitude=%g&current=temperature_2m", baseURL, latitude, longitude)
	hc, err := circuitbreaker.NewHTTPClient("weather", cbCfg, probeURL, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("weatherclient: %w", err)
	}
	return &Client{base: baseURL, latitude: latitude, longitude: longitude, hc: hc}, nil
}

// Get fetches current temperature plus the next 24 hours of hourly
// forecast, then averages hours [1,13) into the "next 24h" figure the
// graph consumes as avg_next_24h_outdoor_temp (spec §6).
func (c *Client) Get(ctx context.Context) (Forecast, error) {
	url := fmt.Sprintf("%s?latitude=%g&longitude=%g&current=temperature_2m&hourly=temperature_2m&forecast_days=2",
		c.base, c.latitude, c.longitude)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Forecast{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return Forecast{}, fmt.Errorf("weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Forecast{}, fmt.Errorf("weather: unexpected status %d", resp.StatusCode)
	}
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Forecast{}, fmt.Errorf("weather: malformed body: %w", err)
	}

	const windowStart, windowEnd = 1, 13
	if len(body.Hourly.Temperature2m) < windowEnd {
		return Forecast{}, fmt.Errorf("weather: expected at least %d hourly points, got %d", windowEnd, len(body.Hourly.Temperature2m))
	}
	var sum float64
	for i := windowStart; i < windowEnd; i++ {
		sum += body.Hourly.Temperature2m[i]
	}
	avg := sum / float64(windowEnd-windowStart)

	return Forecast{
		CurrentTempCelsius:    body.Current.Temperature2m,
		AvgNext24hTempCelsius: avg,
		TrendCelsius:          avg - body.Current.Temperature2m,
	}, nil
}
