package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/openbci/internal/acquisition"
	"github.com/banshee-data/openbci/internal/api"
	"github.com/banshee-data/openbci/internal/config"
	"github.com/banshee-data/openbci/internal/db"
	"github.com/banshee-data/openbci/internal/frame"
	"github.com/banshee-data/openbci/internal/host"
	"github.com/banshee-data/openbci/internal/monitor"
	"github.com/banshee-data/openbci/internal/monitoring"
	"github.com/banshee-data/openbci/internal/openbci"
	"github.com/banshee-data/openbci/internal/version"
)

var (
	configFile = flag.String("config", "", "Path to a JSON node configuration file")
	devMode    = flag.Bool("dev", false, "Run against the synthetic board (ignores -board)")
	listen     = flag.String("listen", ":8080", "HTTP listen address (empty disables the server)")
	apiURL     = flag.String("api", "http://localhost:8080", "Node API address used by the send command")

	// Acquisition
	board      = flag.String("board", "synthetic", "Board name")
	channels   = flag.String("channels", "", "Comma separated EEG channel names")
	gain       = flag.Int("gain", openbci.DefaultGain, "Cyton amplifier gain (1, 2, 4, 6, 8, 12 or 24)")
	disable    = flag.String("disable", "", "Comma separated 1-based Cyton channels to power down")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	timestamps = flag.String("timestamps", "relative", "Timestamp policy: relative or absolute")
	interval   = flag.Duration("interval", host.DefaultInterval, "Poll interval")

	// Transport
	serialPort = flag.String("serial-port", "", "Serial port of the board dongle")
	macAddress = flag.String("mac-address", "", "MAC address of a BLE board")
	ipAddress  = flag.String("ip-address", "", "IP address of a WiFi shield")
	ipPort     = flag.Int("ip-port", 0, "Port of a WiFi shield")
	ipProtocol = flag.String("ip-protocol", "", "WiFi shield protocol: tcp, udp or none")

	// Recording
	dbPath   = flag.String("db-path", "openbci.db", "Path to the recording database")
	noRecord = flag.Bool("no-record", false, "Do not record frames to the database")
)

func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), `openbci - OpenBCI acquisition node

Usage: openbci [flags] [command]

Commands:
  (none)            Run the node
  migrate <action>  Manage the recording database schema (see: migrate help)
  send <command>    Send a raw board command to a running node
  version           Show version information
  help              Show this help message

Flags:
`)
	flag.PrintDefaults()
}

func parseList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, v := range parseList(s) {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q: %w", v, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// applyFlags copies every flag named in set onto cfg, so explicit flags win
// over the configuration file while unset flags leave it alone.
func applyFlags(cfg *config.NodeConfig, set map[string]bool) error {
	params := cfg.GetParams()
	paramsSet := false

	for name := range set {
		switch name {
		case "board":
			cfg.Board = board
		case "channels":
			cfg.Channels = parseList(*channels)
		case "gain":
			cfg.Gain = gain
		case "disable":
			d, err := parseIntList(*disable)
			if err != nil {
				return err
			}
			cfg.Disable = d
		case "debug":
			cfg.Debug = debug
		case "timestamps":
			cfg.Timestamps = timestamps
		case "interval":
			s := interval.String()
			cfg.PollInterval = &s
		case "db-path":
			cfg.DBPath = dbPath
		case "no-record":
			record := !*noRecord
			cfg.Record = &record
		case "listen":
			cfg.Listen = listen
		case "serial-port":
			params.SerialPort, paramsSet = *serialPort, true
		case "mac-address":
			params.MACAddress, paramsSet = *macAddress, true
		case "ip-address":
			params.IPAddress, paramsSet = *ipAddress, true
		case "ip-port":
			params.IPPort, paramsSet = *ipPort, true
		case "ip-protocol":
			params.IPProtocol, paramsSet = acquisition.IPProtocol(*ipProtocol), true
		}
	}
	if paramsSet {
		cfg.Params = &params
	}
	if *devMode {
		synthetic := "synthetic"
		cfg.Board = &synthetic
		cfg.Params = nil
	}
	return cfg.Validate()
}

func loadConfig() (*config.NodeConfig, error) {
	cfg := config.EmptyNodeConfig()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadNodeConfig(*configFile); err != nil {
			return nil, err
		}
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if err := applyFlags(cfg, set); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSend(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: openbci send <command>")
	}
	res, err := api.NewClient(*apiURL, nil).SendCommand(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("sent %q", res.Command)
	if res.Response != "" {
		fmt.Printf(": %s", res.Response)
	}
	fmt.Println()
	return nil
}

// Main
func main() {
	flag.Usage = printUsage
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if flag.NArg() > 0 {
		command := flag.Arg(0)
		args := flag.Args()[1:]
		switch command {
		case "migrate":
			if err := db.RunMigrateCommand(args, *dbPath, os.Stdout); err != nil {
				log.Fatalf("migrate: %v", err)
			}
		case "send":
			if err := runSend(args); err != nil {
				log.Fatalf("send: %v", err)
			}
		case "version":
			fmt.Println(version.Get())
		case "help":
			printUsage()
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
			printUsage()
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	latest := &frame.Latest{}
	broker := frame.NewBroker()
	defer broker.Close()
	ports := []frame.Port{latest, broker}

	var database *db.DB
	if cfg.GetRecord() {
		database, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("failed to open recording database: %v", err)
		}
		defer database.Close()

		recorder := db.NewRecorder(database, nil)
		defer func() {
			if err := recorder.Close(); err != nil {
				log.Printf("failed to close recording sessions: %v", err)
			}
		}()
		ports = append(ports, recorder)
	}

	opener := acquisition.DefaultOpener{Logf: monitoring.Logf.Prefixed("acquisition: ")}
	node, err := openbci.New(cfg.NodeOptions(), opener, frame.Multi(ports...), openbci.WithLogger(monitoring.Logf))
	if err != nil {
		log.Fatalf("failed to start node: %v", err)
	}
	log.Printf("node %s started on %s (%d Hz)", node.SessionID(), node.Board().Board, node.Rate())

	// Create a wait group for the host loop and the HTTP server
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := host.Run(ctx, node, host.Options{Interval: cfg.GetPollInterval()}); err != nil {
			log.Printf("node teardown: %v", err)
		}
		log.Print("host routine terminated")
	}()

	if addr := cfg.GetListen(); addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, addr, node, latest, broker, database)
		}()
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func serveHTTP(ctx context.Context, addr string, node *openbci.Node, latest *frame.Latest, broker *frame.Broker, database *db.DB) {
	mux := api.NewServer(node, latest, database).ServeMux()

	node.AttachAdminRoutes(mux)
	monitor.New(latest, broker).AttachAdminRoutes(mux)
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach database admin routes: %v", err)
		}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: api.LoggingMiddleware(nil, mux),
	}

	// Start server in a goroutine so it doesn't block
	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for context cancellation to shut down server
	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	// close frame tails so streaming handlers return
	broker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		// Force close the server if graceful shutdown fails
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
}
