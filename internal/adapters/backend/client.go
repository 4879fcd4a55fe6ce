// Package backend is the HTTP client for the recognition backend: attendance
// submission, attendance records, registration and geofence administration.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/logger"
	"github.com/okian/presence/pkg/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyLog     = 512
)

// Client talks to the recognition backend. It never retries.
type Client struct {
	base *url.URL
	http *http.Client
	log  logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every request. The submission has no other deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a client for the backend at rawURL.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", rawURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("backend")
	}
	return c, nil
}

// Submit posts one captured frame, with coordinates when loc is non-nil,
// and returns the server's verdict. Any response carrying a well-formed
// verdict is returned as a verdict, including application rejections.
func (c *Client) Submit(ctx context.Context, frame model.CapturedFrame, loc *model.LocationFix, token string) (Verdict, error) {
	fields := map[string]string{}
	if loc != nil {
		fields["latitude"] = strconv.FormatFloat(loc.Latitude, 'f', -1, 64)
		fields["longitude"] = strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
	}
	body, ctype, err := multipartBody(frame, "attendance.jpg", fields)
	if err != nil {
		return Verdict{}, &SubmitError{Kind: ErrNetwork, Err: err}
	}

	status, raw, err := c.do(ctx, "attendance", http.MethodPost, "attendance", token, ctype, body)
	if err != nil {
		return Verdict{}, err
	}
	var w wireVerdict
	if err := json.Unmarshal(raw, &w); err != nil || w.Success == nil {
		if err == nil {
			err = fmt.Errorf("response has no success field")
		}
		return Verdict{}, &SubmitError{Kind: ErrServer, Status: status, Body: truncate(raw), Err: err}
	}
	v := Verdict{
		Success:        *w.Success,
		RecognizedUser: w.RecognizedUser,
		Location:       w.Location,
		Message:        w.Message,
		Error:          w.Error,
	}
	c.log.Debug(ctx, "verdict received",
		logger.Int("status", status),
		logger.Bool("success", v.Success),
		logger.Bool("recognized", v.RecognizedUser != nil))
	return v, nil
}

// AttendanceRecords returns the most recent attendance records, newest first.
func (c *Client) AttendanceRecords(ctx context.Context, token string) ([]Record, error) {
	var env envelope
	if err := c.call(ctx, "records", http.MethodGet, "attendance-records", token, nil, &env); err != nil {
		return nil, err
	}
	return env.Records, nil
}

// LocationSettings returns the geofence configuration. Requires an admin token.
func (c *Client) LocationSettings(ctx context.Context, token string) (LocationSettings, error) {
	var env envelope
	if err := c.call(ctx, "location_settings", http.MethodGet, "admin/location-settings", token, nil, &env); err != nil {
		return LocationSettings{}, err
	}
	if env.Settings == nil {
		return LocationSettings{}, &SubmitError{Kind: ErrServer, Err: fmt.Errorf("response has no settings")}
	}
	return *env.Settings, nil
}

// UpdateLocationSettings replaces the geofence configuration.
func (c *Client) UpdateLocationSettings(ctx context.Context, token string, s LocationSettings) (LocationSettings, error) {
	var env envelope
	if err := c.call(ctx, "location_settings_update", http.MethodPost, "admin/location-settings", token, s, &env); err != nil {
		return LocationSettings{}, err
	}
	if env.Settings == nil {
		return s, nil
	}
	return *env.Settings, nil
}

// TestLocation asks the server whether the coordinates fall inside the geofence.
func (c *Client) TestLocation(ctx context.Context, token string, lat, lon float64) (LocationTest, error) {
	in := map[string]float64{"latitude": lat, "longitude": lon}
	var env envelope
	if err := c.call(ctx, "test_location", http.MethodPost, "admin/test-location", token, in, &env); err != nil {
		return LocationTest{}, err
	}
	return env.LocationTest, nil
}

// Register enrols a new user from a registration still.
func (c *Client) Register(ctx context.Context, frame model.CapturedFrame, r Registration) (Registered, error) {
	body, ctype, err := multipartBody(frame, r.UserID+".jpg", map[string]string{
		"name":     r.Name,
		"user_id":  r.UserID,
		"password": r.Password,
	})
	if err != nil {
		return Registered{}, &SubmitError{Kind: ErrNetwork, Err: err}
	}
	status, raw, err := c.do(ctx, "register", http.MethodPost, "register", "", ctype, body)
	if err != nil {
		return Registered{}, err
	}
	var env envelope
	if err := decodeEnvelope(status, raw, &env); err != nil {
		return Registered{}, err
	}
	if env.Data == nil {
		return Registered{UserID: r.UserID, Name: r.Name}, nil
	}
	return *env.Data, nil
}

type envelope struct {
	Success  *bool             `json:"success"`
	Error    string            `json:"error"`
	Records  []Record          `json:"records"`
	Settings *LocationSettings `json:"settings"`
	Data     *Registered       `json:"data"`
	LocationTest
}

func (c *Client) call(ctx context.Context, endpoint, method, path, token string, in any, env *envelope) error {
	var body io.Reader
	ctype := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		ctype = "application/json"
	}
	status, raw, err := c.do(ctx, endpoint, method, path, token, ctype, body)
	if err != nil {
		return err
	}
	return decodeEnvelope(status, raw, env)
}

func decodeEnvelope(status int, raw []byte, env *envelope) error {
	if err := json.Unmarshal(raw, env); err != nil || env.Success == nil {
		if err == nil {
			err = fmt.Errorf("response has no success field")
		}
		return &SubmitError{Kind: ErrServer, Status: status, Body: truncate(raw), Err: err}
	}
	if !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = "no reason given"
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return nil
}

// do sends one request and classifies transport, auth and 5xx failures.
func (c *Client) do(ctx context.Context, endpoint, method, path, token, ctype string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return 0, nil, &SubmitError{Kind: ErrNetwork, Err: fmt.Errorf("could not create request: %w", err)}
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordBackendRequest(endpoint, "error", msSince(start))
		c.log.Warn(ctx, "backend request failed", logger.String("endpoint", endpoint), logger.Error(err))
		return 0, nil, &SubmitError{Kind: ErrNetwork, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	metrics.RecordBackendRequest(endpoint, strconv.Itoa(resp.StatusCode), msSince(start))
	if err != nil {
		return resp.StatusCode, nil, &SubmitError{Kind: ErrNetwork, Status: resp.StatusCode, Err: fmt.Errorf("could not read response body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, raw, &SubmitError{Kind: ErrUnauthorized, Status: resp.StatusCode, Body: truncate(raw)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return resp.StatusCode, raw, &SubmitError{Kind: ErrServer, Status: resp.StatusCode, Body: truncate(raw)}
	}
	return resp.StatusCode, raw, nil
}

func multipartBody(frame model.CapturedFrame, filename string, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	mime := frame.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(frame.Data); err != nil {
		return nil, "", err
	}
	for _, k := range []string{"latitude", "longitude", "name", "user_id", "password"} {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

func truncate(b []byte) string {
	if len(b) > maxBodyLog {
		return string(b[:maxBodyLog]) + "..."
	}
	return string(b)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
