// Package timeseries implements the Time-Series Gateway (C1): a thin
// HTTP client over a SQL-like `{q, db}` query endpoint and a
// line-protocol write endpoint, wrapped in internal/resilience for
// circuit breaking, fixed-delay retry and per-call deadlines, grounded on execute.go's
// http.Client shape and kafkaio's per-target dial/retry idiom.
package timeseries

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nrgchamp/equipment-control/internal/config"
	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/resilience"
)

// Row is one record returned by a query, decoded from the collaborator's
// row-array JSON response.
type Row map[string]any

// Client is the Time-Series Gateway.
type Client struct {
	hc           *http.Client
	baseURL      string
	dbs          config.TimeSeriesDBs
	queryTimeout time.Duration
	writeTimeout time.Duration
	retries      int
	queryBreaker *resilience.Breaker
	writeBreaker *resilience.Breaker
	lg           *slog.Logger
}

func New(cfg *config.AppConfig, lg *slog.Logger) *Client {
	if lg == nil {
		lg = slog.Default()
	}
	return &Client{
		hc:           &http.Client{Timeout: cfg.QueryTimeout + cfg.WriteTimeout},
		baseURL:      strings.TrimRight(cfg.TimeSeriesURL, "/"),
		dbs:          cfg.TimeSeriesDBs,
		queryTimeout: cfg.QueryTimeout,
		writeTimeout: cfg.WriteTimeout,
		retries:      cfg.TimeSeriesRetries,
		queryBreaker: resilience.New("timeseries-query", resilience.DefaultConfig(), lg),
		writeBreaker: resilience.New("timeseries-write", resilience.DefaultConfig(), lg),
		lg:           lg,
	}
}

// httpStatusError carries the response status so WithRetry can decide
// whether a 4xx (fail fast) or 5xx (retry) happened.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("timeseries: status %d: %s", e.status, e.body)
}

func (e *httpStatusError) Retryable() bool { return e.status >= 500 }

// networkError wraps any error that isn't a clean HTTP status (DNS
// failure, connection refused, timeout) — always retryable.
type networkError struct{ err error }

func (e *networkError) Error() string   { return e.err.Error() }
func (e *networkError) Retryable() bool { return true }
func (e *networkError) Unwrap() error   { return e.err }

// QueryRecent performs a time-bounded most-recent query against
// `table`, retrying with a 60-minute fallback window if the initial
// 5-minute window returns nothing.
func (c *Client) QueryRecent(ctx context.Context, db, table, equipmentID, locationID string, window time.Duration) ([]Row, error) {
	rows, err := c.query(ctx, db, recentQuery(table, equipmentID, locationID, window))
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 || window >= 60*time.Minute {
		return rows, nil
	}
	return c.query(ctx, db, recentQuery(table, equipmentID, locationID, 60*time.Minute))
}

func recentQuery(table, equipmentID, locationID string, window time.Duration) string {
	return fmt.Sprintf(
		"SELECT * FROM %s WHERE equipment_id = '%s' AND location_id = '%s' AND time > now() - interval '%d seconds' ORDER BY time DESC LIMIT 1",
		table, equipmentID, locationID, int(window.Seconds()),
	)
}

// ScanCustomLogicEnabled returns the distinct equipment ids whose most
// recent metrics sample within `window` carries customLogicEnabled=true,
// used by the orchestrator to union into its working set even when
// control-enabled is false in the document store (step 1).
func (c *Client) ScanCustomLogicEnabled(ctx context.Context, window time.Duration) ([]string, error) {
	q := fmt.Sprintf(
		"SELECT DISTINCT equipment_id FROM %s WHERE custom_logic_enabled = true AND time > now() - interval '%d seconds'",
		c.dbs.Locations, int(window.Seconds()),
	)
	rows, err := c.query(ctx, c.dbs.Locations, q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if id, ok := r["equipment_id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ReadUICommands returns the most recent UI override per command for
// one equipment within `window`.
func (c *Client) ReadUICommands(ctx context.Context, equipmentID string, window time.Duration) ([]model.UICommand, error) {
	q := fmt.Sprintf(
		"SELECT * FROM equipment_controls WHERE equipment_id = '%s' AND time > now() - interval '%d seconds' ORDER BY time DESC",
		equipmentID, int(window.Seconds()),
	)
	rows, err := c.query(ctx, c.dbs.UIControlCommands, q)
	if err != nil {
		return nil, err
	}
	latest := map[string]model.UICommand{}
	for _, r := range rows {
		cmd := uiCommandFromRow(r)
		if _, seen := latest[cmd.Command]; !seen {
			latest[cmd.Command] = cmd
		}
	}
	out := make([]model.UICommand, 0, len(latest))
	for _, v := range latest {
		out = append(out, v)
	}
	return out, nil
}

func uiCommandFromRow(r Row) model.UICommand {
	cmd := model.UICommand{Settings: model.Settings{}}
	for k, v := range r {
		switch k {
		case "equipment_id":
			cmd.EquipmentID, _ = v.(string)
		case "location_id":
			cmd.LocationID, _ = v.(string)
		case "user_id":
			cmd.UserID, _ = v.(string)
		case "user_name":
			cmd.UserName, _ = v.(string)
		case "command_type", "command":
			cmd.Command, _ = v.(string)
		default:
			cmd.Settings[k] = v
		}
	}
	return cmd
}

// WriteCommands batch-writes neural command tuples as line-protocol
// records to the NeuralControlCommands database, matching the
// emitted-record format bit-exact.
func (c *Client) WriteCommands(ctx context.Context, batch []model.NeuralCommand) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, cmd := range batch {
		sb.WriteString(formatNeuralCommandLine(cmd))
		sb.WriteByte('\n')
	}
	return c.write(ctx, c.dbs.NeuralControlCommands, sb.String())
}

// formatNeuralCommandLine renders one command as the line-protocol
// record expected downstream, bit-exact: all values quoted strings,
// nanosecond timestamp.
func formatNeuralCommandLine(cmd model.NeuralCommand) string {
	ts := cmd.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf(
		"NeuralCommands,equipment_id=%s,location_id=%s,command_type=%s,equipment_type=%s,source=%s,status=%s value=%q %d",
		cmd.EquipmentID, cmd.LocationID, cmd.CommandName, string(cmd.EquipmentKind), cmd.Source, cmd.Status,
		stringify(cmd.Value), ts.UnixNano(),
	)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

// WriteUICommand records an incoming UI command to the
// UIControlCommands database, tagged the way ReadUICommands expects to
// read it back (step 1).
func (c *Client) WriteUICommand(ctx context.Context, cmd model.UICommand) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"equipment_controls,equipment_id=%s,location_id=%s,user_id=%s command_type=%q,user_name=%q",
		cmd.EquipmentID, cmd.LocationID, cmd.UserID, cmd.Command, cmd.UserName,
	))
	for k, v := range cmd.Settings {
		sb.WriteString(fmt.Sprintf(",%s=%q", k, stringify(v)))
	}
	ts := cmd.EnqueuedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(fmt.Sprintf(" %d", ts.UnixNano()))
	return c.write(ctx, c.dbs.UIControlCommands, sb.String())
}

// WriteConfigurationSnapshot archives a user-saved configuration
//.
func (c *Client) WriteConfigurationSnapshot(ctx context.Context, equipmentID, locationID string, settings model.Settings) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	line := fmt.Sprintf(
		"ConfigurationSnapshots,equipment_id=%s,location_id=%s settings=%q %d",
		equipmentID, locationID, string(b), time.Now().UnixNano(),
	)
	return c.write(ctx, c.dbs.NeuralControlCommands, line)
}

// WriteLedgerEvent records a lead/lag rotation or failover to the
// ControlCommands database.
func (c *Client) WriteLedgerEvent(ctx context.Context, ev model.LedgerEvent) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	line := fmt.Sprintf(
		"LeadLagEvents,group_id=%s,event_type=%s newLeadId=%q,reason=%q %d",
		ev.GroupID, ev.EventType, ev.NewLeadID, ev.Reason, ts.UnixNano(),
	)
	return c.write(ctx, c.dbs.ControlCommands, line)
}

func (c *Client) query(ctx context.Context, db, q string) ([]Row, error) {
	var rows []Row
	op := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
		body, err := json.Marshal(map[string]string{"q": q, "db": db})
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(req)
		if err != nil {
			return &networkError{err}
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 300 {
			return &httpStatusError{status: resp.StatusCode, body: string(respBody)}
		}
		return json.Unmarshal(respBody, &rows)
	}
	err := c.queryBreaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithRetry(ctx, c.retries, 500*time.Millisecond, op)
	})
	if err != nil {
		return nil, classify(err)
	}
	return rows, nil
}

func (c *Client) write(ctx context.Context, db, lineProtocol string) error {
	op := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/write?db="+db, strings.NewReader(lineProtocol))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "text/plain")
		resp, err := c.hc.Do(req)
		if err != nil {
			return &networkError{err}
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 300 {
			return &httpStatusError{status: resp.StatusCode, body: string(respBody)}
		}
		return nil
	}
	err := c.writeBreaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithRetry(ctx, c.retries, 500*time.Millisecond, op)
	})
	return classify(err)
}

// classify maps a raw transport/status error onto the model.ErrorKind
// taxonomy so callers can apply the matching policy without knowing
// HTTP details.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded {
		return model.NewControlError(model.KindTimeout, err)
	}
	if err == resilience.ErrOpen {
		return model.NewControlError(model.KindUpstreamUnavailable, err)
	}
	if se, ok := err.(*httpStatusError); ok {
		if se.status >= 500 {
			return model.NewControlError(model.KindUpstreamUnavailable, err)
		}
		return model.NewControlError(model.KindBadInput, err)
	}
	if _, ok := err.(*networkError); ok {
		return model.NewControlError(model.KindUpstreamUnavailable, err)
	}
	return err
}
