package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/germanamz/gsmgate/pkg/tools/devicetools"
	"github.com/germanamz/gsmgate/pkg/tools/mcpserver"
)

const mcpInstructions = `Tools for a GSM modem gateway. Read gsm_status before acting: when the
SIM is locked call gsm_enter_pin first. USSD menus are interactive: when
gsm_ussd reports awaiting_reply, answer with gsm_ussd_reply or end the
session with gsm_ussd_cancel.`

func runMCP(args []string) error {
	var opts setupOptions

	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	opts.register(fs)
	httpAddr := fs.String("http", "", "serve streamable HTTP on this address instead of stdio")
	timeout := fs.Duration("timeout", devicetools.DefaultTimeout, "how long a tool waits for the gateway")
	only := fs.String("tools", "", "comma-separated tool names to expose (default: all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env, err := opts.load()
	if err != nil {
		return err
	}

	// stdout carries the protocol; logs go to the file or stderr.
	logFile, log, err := openLog(env.dir, env.cfg.Log.Level)
	if err != nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	} else {
		defer func() { _ = logFile.Close() }()
	}

	sess, err := newSession(env.cfg, languageOf(env.cfg, loadPrefsOrDefault(env, log)), log)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		return err
	}

	stopMirror := startMirror(ctx, env.cfg.MQTT, sess, log)
	defer stopMirror()

	srv := mcpserver.New("gsmctl", version, mcpInstructions)
	tb := devicetools.New(sess, devicetools.Options{Timeout: *timeout}).ToolBox()
	srv.RegisterBox(tb.Filter(splitList(*only)))

	if *httpAddr == "" {
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	}

	return serveMCPHTTP(ctx, *httpAddr, srv.Handler(), log)
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func serveMCPHTTP(ctx context.Context, addr string, h http.Handler, log *slog.Logger) error {
	hs := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.Info("mcp listening", "addr", addr)
	fmt.Fprintf(os.Stderr, "MCP endpoint: http://%s/\n", addr)

	if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
