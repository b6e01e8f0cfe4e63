package simulator

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/germanamz/gsmgate/pkg/webapi"
)

// WebSocketPath is where Handler mounts the duplex channel.
const WebSocketPath = "/ws"

// Handler serves the HTTP actions and, under WebSocketPath, the duplex
// channel.
func (d *Device) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/getmode", d.getMode)
	r.Get("/scanwifi", d.scanWiFi)
	r.Post("/savewifi", d.saveWiFi)
	r.Post("/saveconfig", d.saveConfig)
	r.Post("/enterpin", d.enterPIN)
	r.Post("/reboot", d.reboot)
	r.Get(WebSocketPath, d.serveWS)

	return r
}

// WebSocketHandler serves only the duplex channel, on any path, the way the
// gateway does on its websocket port.
func (d *Device) WebSocketHandler() http.Handler {
	return http.HandlerFunc(d.serveWS)
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func result(w http.ResponseWriter, status int, ok bool, msg string) {
	jsonResponse(w, status, webapi.Result{Success: ok, Message: msg})
}

func (d *Device) getMode(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	info := webapi.ModeInfo{Mode: d.mode, SimReady: d.unlocked, SimPinRequired: !d.unlocked}
	d.mu.Unlock()

	jsonResponse(w, http.StatusOK, info)
}

func (d *Device) scanWiFi(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	mode, networks := d.mode, d.networks
	d.mu.Unlock()

	if mode != webapi.ModeAP {
		result(w, http.StatusForbidden, false, "Scan only available in AP mode")
		return
	}
	if len(networks) == 0 {
		jsonResponse(w, http.StatusOK, webapi.ScanResult{Message: "No networks found"})
		return
	}

	jsonResponse(w, http.StatusOK, webapi.ScanResult{Success: true, Networks: networks})
}

func (d *Device) saveWiFi(w http.ResponseWriter, r *http.Request) {
	ssid := strings.TrimSpace(r.PostFormValue("ssid"))

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.mode != webapi.ModeAP {
		result(w, http.StatusForbidden, false, "Only available in AP mode")
		return
	}
	if ssid == "" {
		result(w, http.StatusInternalServerError, false, "Failed to save configuration")
		return
	}

	d.wifiSSID = ssid
	d.reboots++
	result(w, http.StatusOK, true, "WiFi credentials saved. Rebooting...")
}

func (d *Device) saveConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		result(w, http.StatusBadRequest, false, "Invalid form")
		return
	}

	d.mu.Lock()
	s := &d.settings
	s.ServerHost = r.PostFormValue("server_host")
	s.ServerPort = r.PostFormValue("server_port")
	s.ServerUser = r.PostFormValue("server_user")
	// Empty secrets keep the stored value.
	if v := r.PostFormValue("server_pass"); v != "" {
		s.ServerPassword = v
	}
	if v := r.PostFormValue("ap_password"); v != "" {
		s.APPassword = v
	}
	if v := r.PostFormValue("sim_pin"); v != "" {
		s.SimPIN = v
	}
	d.mu.Unlock()

	result(w, http.StatusOK, true, "Settings saved")
}

func (d *Device) enterPIN(w http.ResponseWriter, r *http.Request) {
	pin := r.PostFormValue("pin")

	d.mu.Lock()
	switch {
	case d.unlocked:
		d.mu.Unlock()
		result(w, http.StatusOK, true, "SIM already unlocked")
		return
	case pin != d.pin:
		d.mu.Unlock()
		result(w, http.StatusOK, false, "Incorrect PIN")
		return
	}
	d.unlocked = true
	status := d.statusFrame()
	d.mu.Unlock()

	result(w, http.StatusOK, true, "PIN accepted")
	d.Broadcast(r.Context(), status)
}

func (d *Device) reboot(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	d.reboots++
	d.mu.Unlock()

	result(w, http.StatusOK, true, "Rebooting...")
}

func (d *Device) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		d.log.Warn("websocket accept failed", "error", err)
		return
	}

	id := uuid.NewString()
	log := d.log.With("conn_id", id)
	log.Info("client connected", "remote", r.RemoteAddr)

	d.mu.Lock()
	d.conns[c] = struct{}{}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.conns, c)
		d.mu.Unlock()
		_ = c.Close(websocket.StatusNormalClosure, "")
		log.Info("client disconnected")
	}()

	ctx := r.Context()
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}

		req, err := decodeRequest(data)
		if err != nil || req.Action == "" {
			// The gateway drops frames it cannot parse.
			log.Debug("ignored frame", "error", err)
			continue
		}
		log.Debug("action", "action", req.Action)

		for _, f := range d.handle(req) {
			if err := c.Write(ctx, websocket.MessageText, f); err != nil {
				return
			}
		}
	}
}
