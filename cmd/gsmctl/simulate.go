package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/germanamz/gsmgate/pkg/simulator"
	"github.com/germanamz/gsmgate/pkg/webapi"
)

// simulateOptions configures `gsmctl simulate`.
type simulateOptions struct {
	httpAddr string
	wsAddr   string
	mode     string
	pin      string
	batch    bool
	seed     int
	incoming time.Duration
	verbose  bool
}

func runSimulate(args []string) error {
	var o simulateOptions

	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	fs.StringVar(&o.httpAddr, "http", "127.0.0.1:8080", "address of the HTTP action endpoints")
	fs.StringVar(&o.wsAddr, "ws", "127.0.0.1:8081", "address of the WebSocket channel")
	fs.StringVar(&o.mode, "mode", string(webapi.ModeSTA), "gateway mode: STA or AP")
	fs.StringVar(&o.pin, "pin", "", "lock the SIM behind this PIN")
	fs.BoolVar(&o.batch, "batch", false, "answer inbox listings with a single batch frame")
	fs.IntVar(&o.seed, "seed", 3, "number of messages stored at start")
	fs.DurationVar(&o.incoming, "incoming", 0, "deliver a new SMS at this interval (0 disables)")
	fs.BoolVar(&o.verbose, "v", false, "log every request")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mode := webapi.Mode(strings.ToUpper(o.mode))
	if mode != webapi.ModeSTA && mode != webapi.ModeAP {
		return fmt.Errorf("simulate: unknown mode %q", o.mode)
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dev := simulator.New(simulator.Options{
		Mode:     mode,
		PIN:      o.pin,
		Batch:    o.batch,
		Messages: seedMessages(o.seed),
		Logger:   log,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return serveSimulator(ctx, dev, o, log)
}

// serveSimulator runs the HTTP and WebSocket listeners until ctx ends.
func serveSimulator(ctx context.Context, dev *simulator.Device, o simulateOptions, log *slog.Logger) error {
	httpLn, err := net.Listen("tcp", o.httpAddr)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	wsLn, err := net.Listen("tcp", o.wsAddr)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("simulate: %w", err)
	}

	printSimulatorHint(httpLn.Addr().String(), wsLn.Addr().String())

	servers := []*http.Server{
		{Handler: dev.Handler(), ReadHeaderTimeout: 5 * time.Second},
		{Handler: dev.WebSocketHandler(), ReadHeaderTimeout: 5 * time.Second},
	}
	listeners := []net.Listener{httpLn, wsLn}

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		ln := listeners[i]
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if o.incoming > 0 {
		g.Go(func() error {
			deliverIncoming(gctx, dev, o.incoming, log)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

func deliverIncoming(ctx context.Context, dev *simulator.Device, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			index := dev.Receive(ctx, "+15550199", fmt.Sprintf("Automated message %d", n))
			log.Info("delivered sms", "index", index)
		}
	}
}

func seedMessages(n int) []simulator.Message {
	samples := []simulator.Message{
		{Sender: "+15550101", Body: "Your verification code is 482913."},
		{Sender: "SimNet", Body: "Your balance is 12.50. Dial *101# for details."},
		{Sender: "+15550102", Body: "Running late, be there in 10 minutes."},
		{Sender: "+966500000001", Body: "مرحبا، كيف حالك؟"},
	}

	out := make([]simulator.Message, 0, n)
	for i := range n {
		m := samples[i%len(samples)]
		m.Index = i + 1
		m.Status = "REC READ"
		if i == n-1 {
			m.Status = "REC UNREAD"
		}
		m.Timestamp = time.Date(2024, 5, 1, 9, i, 0, 0, time.UTC).Format("06/01/02,15:04:05+00")
		out = append(out, m)
	}
	return out
}

func printSimulatorHint(httpAddr, wsAddr string) {
	host, httpPort, _ := net.SplitHostPort(httpAddr)
	_, wsPort, _ := net.SplitHostPort(wsAddr)

	fmt.Fprintf(os.Stderr, "Simulated gateway listening on http://%s and ws://%s\n", httpAddr, wsAddr)
	fmt.Fprintf(os.Stderr, "Point gsmctl at it with:\n\n"+
		"device:\n  host: %s\n  http_port: %s\n  ws_port: %s\n\n", host, httpPort, wsPort)
}
