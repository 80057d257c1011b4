// Command chamber runs the anechoic chamber measurement daemon: it owns
// the rotator serial link and the network analyzer connection, runs scans
// through the scan manager, and serves the measurement API over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hrg-lab/chamber/internal/analyzer"
	"github.com/hrg-lab/chamber/internal/api"
	"github.com/hrg-lab/chamber/internal/db"
	"github.com/hrg-lab/chamber/internal/positioner"
	"github.com/hrg-lab/chamber/internal/scan"
)

var (
	devMode      = flag.Bool("dev", false, "Run with a simulated rotator and analyzer")
	listen       = flag.String("listen", ":8080", "Listen address")
	serialPort   = flag.String("port", "/dev/ttyUSB0", "Rotator serial port")
	analyzerAddr = flag.String("analyzer", "", "Network analyzer SCPI address (host:port)")
	dbFile       = flag.String("db", "chamber.db", "Session database path")
	rotatorCfg   = flag.String("rotator-config", "", "Rotator JSON config file (D6050 defaults when empty)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := positioner.DefaultD6050Config()
	if *rotatorCfg != "" {
		var err error
		cfg, err = positioner.LoadConfig(*rotatorCfg)
		if err != nil {
			log.Fatalf("failed to load rotator config: %v", err)
		}
	}

	var port positioner.Porter
	var an analyzer.Analyzer
	if *devMode {
		// A permissive fake board: every command, including move
		// completion polls, reads back as finished.
		tp := positioner.NewTestPort()
		tp.DefaultReply = "x0f0\r"
		port = tp
		an = analyzer.NewMock()
	} else {
		if *analyzerAddr == "" {
			log.Fatal("analyzer address is required outside dev mode")
		}
		var err error
		port, err = positioner.OpenPort(*serialPort, &positioner.PortMode{
			BaudRate:    cfg.BaudRate,
			ReadTimeout: 2 * time.Second,
		})
		if err != nil {
			log.Fatalf("failed to open rotator port: %v", err)
		}
		an, err = analyzer.Dial(*analyzerAddr)
		if err != nil {
			log.Fatalf("failed to connect to analyzer: %v", err)
		}
	}
	defer an.Close()

	rotator, err := positioner.NewController(port, cfg)
	if err != nil {
		log.Fatalf("failed to initialize rotator: %v", err)
	}
	defer rotator.Close()

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	mgr := scan.NewManager(rotator, an)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// admin debugging routes (accessible only in dev mode or over Tailscale)
		store.AttachAdminRoutes(mux)

		apiMux := api.NewServer(mgr, rotator, store).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	// Stop any in-flight scan on shutdown so the worker releases the
	// positioner before the deferred Close runs.
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		mgr.Abort()
		mgr.Wait()
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
