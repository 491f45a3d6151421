package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	hmi "extruder_hmi"
)

// Client is the request/response side of the process backend: full-state
// fetches for the poll strategy and push baseline, and pass-through
// commands whose effect is only observed through a later snapshot.
type Client interface {
	FetchStatus(ctx context.Context) (hmi.State, error)
	Command(ctx context.Context, command string, value any) error
}

const (
	statusPath  = "/api/status"
	controlPath = "/api/control"

	defaultFetchTimeout = 5 * time.Second
)

// HTTPClient talks JSON over HTTP to the backend.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
}

// Ensure interface compliance at compile time.
var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// statusPayload mirrors GET /api/status: the state dict plus the config
// sub-tree, which is passed through unmodified.
type statusPayload struct {
	State  rawState        `json:"state"`
	Config json.RawMessage `json:"config"`
}

// rawState decodes the backend's state dict. The backend keeps scalars at
// the top level next to the category maps; optional scalars are pointers so
// "absent" survives decoding and is resolved here, once, instead of at
// every read site.
type rawState struct {
	Temps        hmi.Category `json:"temps"`
	Motors       hmi.Category `json:"motors"`
	Relays       hmi.Category `json:"relays"`
	PWM          hmi.Category `json:"pwm"`
	ActiveAlarms []hmi.Alarm  `json:"active_alarms"`
	Status       *string      `json:"status"`
	Mode         *string      `json:"mode"`
	TargetZ1     *float64     `json:"target_z1"`
	TargetZ2     *float64     `json:"target_z2"`
	ManualDutyZ1 *float64     `json:"manual_duty_z1"`
	ManualDutyZ2 *float64     `json:"manual_duty_z2"`
	HeaterDutyZ1 *float64     `json:"heater_duty_z1"`
	HeaterDutyZ2 *float64     `json:"heater_duty_z2"`
	PeltierDuty  *float64     `json:"peltier_duty"`
}

// FetchStatus performs a full-state fetch and reshapes the payload into the
// uniform category tree.
func (c *HTTPClient) FetchStatus(ctx context.Context) (hmi.State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath, nil)
	if err != nil {
		return hmi.State{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return hmi.State{}, fmt.Errorf("fetch status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return hmi.State{}, fmt.Errorf("fetch status: backend returned %s", resp.Status)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return hmi.State{}, fmt.Errorf("decode status payload: %w", err)
	}

	return payload.toState(), nil
}

// toState folds the top-level scalars into the "process" category. A scalar
// the backend did not send stays absent rather than becoming a zero; the
// reconciler and derivations treat absence as "no data yet".
func (p statusPayload) toState() hmi.State {
	data := hmi.Snapshot{}
	for name, cat := range map[string]hmi.Category{
		hmi.CategoryTemps:  p.State.Temps,
		hmi.CategoryMotors: p.State.Motors,
		hmi.CategoryRelays: p.State.Relays,
		hmi.CategoryPWM:    p.State.PWM,
	} {
		if cat != nil {
			data[name] = cat
		}
	}

	process := hmi.Category{}
	if p.State.Status != nil {
		process[hmi.KeyStatus] = *p.State.Status
	}
	if p.State.Mode != nil {
		process[hmi.KeyMode] = *p.State.Mode
	}
	for key, v := range map[string]*float64{
		hmi.KeyTargetZ1:     p.State.TargetZ1,
		hmi.KeyTargetZ2:     p.State.TargetZ2,
		hmi.KeyManualDutyZ1: p.State.ManualDutyZ1,
		hmi.KeyManualDutyZ2: p.State.ManualDutyZ2,
		hmi.KeyHeaterDutyZ1: p.State.HeaterDutyZ1,
		hmi.KeyHeaterDutyZ2: p.State.HeaterDutyZ2,
		hmi.KeyPeltierDuty:  p.State.PeltierDuty,
	} {
		if v != nil {
			process[key] = *v
		}
	}
	if len(process) > 0 {
		data[hmi.CategoryProcess] = process
	}

	return hmi.State{
		Data:   data,
		Alarms: p.State.ActiveAlarms,
		Config: p.Config,
	}
}

type commandRequest struct {
	Command string `json:"command"`
	Value   any    `json:"value,omitempty"`
}

// Command sends a fire-and-await control command. This core never issues
// commands itself; it proxies them for the presentation layer.
func (c *HTTPClient) Command(ctx context.Context, command string, value any) error {
	body, err := json.Marshal(commandRequest{Command: command, Value: value})
	if err != nil {
		return fmt.Errorf("marshal command %q: %w", command, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+controlPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("send command %q: %w", command, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("command %q rejected: %s: %s", command, resp.Status, snippet)
	}
	return nil
}
