// Package webapi is a client for the gateway's one-shot HTTP actions: mode
// discovery, Wi-Fi scanning and provisioning, gateway settings, SIM PIN entry
// and reboot. None of them carry session state.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds every request made with the default client.
const DefaultTimeout = 10 * time.Second

// Validation errors.
var (
	ErrInvalidPIN  = errors.New("webapi: PIN must be 4-8 digits")
	ErrMissingSSID = errors.New("webapi: SSID is required")
	ErrStatus      = errors.New("webapi: unexpected status")
)

var pinPattern = regexp.MustCompile(`^\d{4,8}$`)

// ValidatePIN checks the SIM PIN format.
func ValidatePIN(pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPIN
	}

	return nil
}

// Mode is the gateway's network role.
type Mode string

const (
	ModeAP  Mode = "AP"  // Setup access point; Wi-Fi provisioning only.
	ModeSTA Mode = "STA" // Joined a network; the duplex channel is available.
)

// ModeInfo is the answer to GET /getmode.
type ModeInfo struct {
	Mode           Mode `json:"mode"`
	SimReady       bool `json:"sim_ready"`
	SimPinRequired bool `json:"sim_pin_required"`
}

// Network is one Wi-Fi scan result.
type Network struct {
	SSID   string `json:"ssid"`
	RSSI   int    `json:"rssi"`
	Secure bool   `json:"secure"`
}

// Bars maps RSSI to a four-step signal indicator.
func (n Network) Bars() int {
	switch {
	case n.RSSI > -67:
		return 4
	case n.RSSI > -80:
		return 3
	default:
		return 2
	}
}

// ScanResult is the answer to GET /scanwifi.
type ScanResult struct {
	Success  bool      `json:"success"`
	Networks []Network `json:"networks"`
	Message  string    `json:"message"`
}

// Result is the answer to the POST actions.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Settings are the gateway settings submitted to /saveconfig. Empty secrets
// leave the stored value unchanged on the device.
type Settings struct {
	ServerHost     string
	ServerPort     string
	ServerUser     string
	ServerPassword string
	APPassword     string
	SimPIN         string
}

func (s Settings) form() url.Values {
	v := url.Values{}
	v.Set("server_host", s.ServerHost)
	v.Set("server_port", s.ServerPort)
	v.Set("server_user", s.ServerUser)
	v.Set("server_pass", s.ServerPassword)
	v.Set("ap_password", s.APPassword)
	v.Set("sim_pin", s.SimPIN)

	return v
}

// Client talks to one gateway.
type Client struct {
	BaseURL string
	Client  *http.Client

	clientOnce    sync.Once
	defaultClient *http.Client
}

// New creates a Client for baseURL, for example "http://192.168.4.1".
// A nil client falls back to one with DefaultTimeout.
func New(baseURL string, client *http.Client) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

func (c *Client) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}

	c.clientOnce.Do(func() {
		c.defaultClient = &http.Client{Timeout: DefaultTimeout}
	})

	return c.defaultClient
}

// GetMode reports the gateway's role and whether the SIM needs a PIN.
func (c *Client) GetMode(ctx context.Context) (ModeInfo, error) {
	var info ModeInfo
	if err := c.do(ctx, http.MethodGet, "/getmode", nil, &info); err != nil {
		return ModeInfo{}, fmt.Errorf("webapi: get mode: %w", err)
	}

	return info, nil
}

// ScanWiFi lists visible networks. The gateway only scans in AP mode.
func (c *Client) ScanWiFi(ctx context.Context) (ScanResult, error) {
	var res ScanResult
	if err := c.do(ctx, http.MethodGet, "/scanwifi", nil, &res); err != nil {
		return ScanResult{}, fmt.Errorf("webapi: scan wifi: %w", err)
	}

	return res, nil
}

// SaveWiFi stores station credentials; the gateway reboots on success.
func (c *Client) SaveWiFi(ctx context.Context, ssid, password string) (Result, error) {
	if strings.TrimSpace(ssid) == "" {
		return Result{}, ErrMissingSSID
	}

	form := url.Values{"ssid": {ssid}, "password": {password}}

	return c.post(ctx, "/savewifi", form)
}

// SaveConfig submits gateway settings.
func (c *Client) SaveConfig(ctx context.Context, s Settings) (Result, error) {
	return c.post(ctx, "/saveconfig", s.form())
}

// EnterPIN unlocks the SIM.
func (c *Client) EnterPIN(ctx context.Context, pin string) (Result, error) {
	if err := ValidatePIN(pin); err != nil {
		return Result{}, err
	}

	return c.post(ctx, "/enterpin", url.Values{"pin": {pin}})
}

// Reboot restarts the gateway.
func (c *Client) Reboot(ctx context.Context) (Result, error) {
	return c.post(ctx, "/reboot", url.Values{})
}

// post submits a form. The gateway answers errors with a JSON Result and a
// non-2xx status; such a Result is returned alongside the error.
func (c *Client) post(ctx context.Context, path string, form url.Values) (Result, error) {
	var res Result
	err := c.do(ctx, http.MethodPost, path, form, &res)
	if err != nil {
		return res, fmt.Errorf("webapi: post %s: %w", path, err)
	}

	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, dest any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req) //nolint:gosec // URL is built from the configured gateway address.
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// A JSON body is decoded even for error statuses so the device message
	// reaches the caller.
	decodeErr := json.Unmarshal(raw, dest)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil && len(raw) > 0 {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	return nil
}
