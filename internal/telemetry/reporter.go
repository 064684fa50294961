// Package telemetry uploads one reading per cycle to a ThingSpeak-style
// dashboard with a plain GET.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"irrigation-node/internal/connectivity"
)

// Reading is the per-cycle upload. Field order on the wire is fixed:
// light, soil, humidity, temperature, pump, water.
type Reading struct {
	Light        int
	SoilMoisture int
	HumidityPct  float64
	TemperatureC float64
	PumpOn       bool
	WaterPresent bool
}

type Result string

const (
	ResultSent    Result = "sent"
	ResultSkipped Result = "skipped"
	ResultFailed  Result = "failed"
)

// Link reports the current connection flags.
type Link interface {
	State() connectivity.State
}

type Reporter struct {
	endpoint string
	apiKey   string
	link     Link
	client   *http.Client
}

func NewReporter(endpoint, apiKey string, timeout time.Duration, link Link) *Reporter {
	return NewReporterWithClient(endpoint, apiKey, link, &http.Client{Timeout: timeout})
}

func NewReporterWithClient(endpoint, apiKey string, link Link, client *http.Client) *Reporter {
	return &Reporter{endpoint: endpoint, apiKey: apiKey, link: link, client: client}
}

// Report makes exactly one upload attempt when connected. Failures are logged
// and dropped; nothing is queued or retried.
func (r *Reporter) Report(ctx context.Context, rd Reading) Result {
	if !r.link.State().Connected {
		slog.Info("offline, telemetry skipped")
		return ResultSkipped
	}

	u, err := r.URL(rd)
	if err != nil {
		slog.Error("telemetry url", "error", err)
		return ResultFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		slog.Error("telemetry request", "error", err)
		return ResultFailed
	}
	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("telemetry upload failed", "error", err)
		return ResultFailed
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("telemetry upload rejected", "status", resp.StatusCode)
		return ResultFailed
	}
	slog.Info("telemetry sent", "status", resp.StatusCode)
	return ResultSent
}

// URL renders the upload request for rd.
func (r *Reporter) URL(rd Reading) (string, error) {
	u, err := url.Parse(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", r.endpoint, err)
	}
	q := url.Values{}
	q.Set("api_key", r.apiKey)
	q.Set("field1", strconv.Itoa(rd.Light))
	q.Set("field2", strconv.Itoa(rd.SoilMoisture))
	q.Set("field3", formatFloat(rd.HumidityPct))
	q.Set("field4", formatFloat(rd.TemperatureC))
	q.Set("field5", flag(rd.PumpOn))
	q.Set("field6", flag(rd.WaterPresent))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
