package webapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", nil)
}

func TestGetMode(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/getmode", r.URL.Path)
		_, _ = w.Write([]byte(`{"mode":"STA","sim_ready":false,"sim_pin_required":true}`))
	})

	info, err := c.GetMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeInfo{Mode: ModeSTA, SimPinRequired: true}, info)
}

func TestScanWiFi(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"networks":[{"ssid":"home","rssi":-60,"secure":true},{"ssid":"cafe","rssi":-85}]}`))
	})

	res, err := c.ScanWiFi(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Networks, 2)
	assert.Equal(t, "home", res.Networks[0].SSID)
	assert.True(t, res.Networks[0].Secure)
	assert.Equal(t, 4, res.Networks[0].Bars())
	assert.Equal(t, 2, res.Networks[1].Bars())
}

func TestScanWiFiForbiddenCarriesMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"success":false,"message":"Scan only available in AP mode"}`))
	})

	res, err := c.ScanWiFi(context.Background())
	require.ErrorIs(t, err, ErrStatus)
	assert.Empty(t, res.Networks)
}

func TestBars(t *testing.T) {
	assert.Equal(t, 4, Network{RSSI: -50}.Bars())
	assert.Equal(t, 3, Network{RSSI: -67}.Bars())
	assert.Equal(t, 3, Network{RSSI: -79}.Bars())
	assert.Equal(t, 2, Network{RSSI: -80}.Bars())
}

func TestEnterPIN(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "/enterpin", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "1234", r.PostForm.Get("pin"))
		_, _ = w.Write([]byte(`{"success":true,"message":"PIN accepted"}`))
	})

	res, err := c.EnterPIN(context.Background(), "1234")
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, Message: "PIN accepted"}, res)
}

func TestEnterPINValidation(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)

	for _, pin := range []string{"", "123", "123456789", "12a4", " 1234"} {
		_, err := c.EnterPIN(context.Background(), pin)
		assert.ErrorIs(t, err, ErrInvalidPIN, pin)
	}
	assert.NoError(t, ValidatePIN("12345678"))
}

func TestSaveWiFi(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "home", r.PostForm.Get("ssid"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		_, _ = w.Write([]byte(`{"success":true,"message":"WiFi credentials saved. Rebooting..."}`))
	})

	res, err := c.SaveWiFi(context.Background(), "home", "secret")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = c.SaveWiFi(context.Background(), " ", "x")
	assert.ErrorIs(t, err, ErrMissingSSID)
}

func TestSaveWiFiFailureKeepsDeviceMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Failed to save configuration"}`))
	})

	res, err := c.SaveWiFi(context.Background(), "home", "")
	require.ErrorIs(t, err, ErrStatus)
	assert.Equal(t, "Failed to save configuration", res.Message)
}

func TestSaveConfig(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "mqtt.example", r.PostForm.Get("server_host"))
		assert.Equal(t, "1883", r.PostForm.Get("server_port"))
		assert.Equal(t, "", r.PostForm.Get("ap_password"))
		_, _ = w.Write([]byte(`{"success":true,"message":"Settings saved"}`))
	})

	res, err := c.SaveConfig(context.Background(), Settings{ServerHost: "mqtt.example", ServerPort: "1883"})
	require.NoError(t, err)
	assert.Equal(t, "Settings saved", res.Message)
}

func TestReboot(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reboot", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"message":"Rebooting..."}`))
	})

	res, err := c.Reboot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Rebooting...", res.Message)
}

func TestEmptyBodyIsNotAnError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	res, err := c.Reboot(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestBadJSON(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.GetMode(context.Background())
	require.Error(t, err)
}
