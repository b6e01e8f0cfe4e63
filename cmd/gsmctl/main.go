package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Handle subcommands before flag parsing.
	if len(os.Args) > 1 {
		var err error
		handled := true

		switch os.Args[1] {
		case "init":
			err = runInit(os.Args[2:])
		case "config":
			err = runConfigEditor(os.Args[2:])
		case "simulate":
			err = runSimulate(os.Args[2:])
		case "mcp":
			err = runMCP(os.Args[2:])
		case "segment":
			err = runSegment(os.Args[2:], os.Stdin, os.Stdout)
		case "version":
			fmt.Println(version)
		default:
			handled = false
		}

		if handled {
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gsmctl [flags]\n       gsmctl <command> [flags]\n\nFlags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands:\n"+
			"  init      Create the configuration directory and config file\n"+
			"  config    Edit an existing config file interactively\n"+
			"  simulate  Run a simulated gateway on local ports\n"+
			"  mcp       Serve gateway tools over the Model Context Protocol\n"+
			"  segment   Print the SMS segmentation of a text\n"+
			"  version   Print the version\n")
	}

	var opts setupOptions
	opts.register(flag.CommandLine)
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run loads the configuration, starts the device session and enters the
// terminal UI.
func run(opts setupOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env, err := opts.load()
	if err != nil {
		return err
	}

	logFile, log, err := openLog(env.dir, env.cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	prefs := loadPrefsOrDefault(env, log)

	sess, err := newSession(env.cfg, languageOf(env.cfg, prefs), log)
	if err != nil {
		return err
	}
	defer sess.Close()

	stopMirror := startMirror(ctx, env.cfg.MQTT, sess, log)
	defer stopMirror()

	model := newAppModel(ctx, sess, env.dir, prefs)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// Send the program reference so the model can start the bridge.
	go func() {
		p.Send(programReadyMsg{program: p})
	}()

	_, err = p.Run()
	if ctx.Err() != nil {
		return nil
	}

	return err
}
