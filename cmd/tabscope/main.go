// main.go — tabscope daemon entrypoint.
// Boots the request ledger, page-state store and dispatcher, then serves
// the extension/client HTTP surface on loopback until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tabscope/tabscope/internal/config"
	"github.com/tabscope/tabscope/internal/dispatch"
	"github.com/tabscope/tabscope/internal/ledger"
	"github.com/tabscope/tabscope/internal/pagestate"
	"github.com/tabscope/tabscope/internal/server"
)

const version = "1.0.0"

func main() {
	cfg, err := config.FromArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tabscope: %v\n", err)
		os.Exit(2)
	}

	led := ledger.New(cfg.MaxRecords)
	pages := pagestate.NewStore(cfg.MaxTabs)
	disp := dispatch.New(led, pages, version)
	srv := server.New(cfg, led, pages, disp, version)

	httpSrv := &http.Server{
		Addr:              srv.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Println()
	fmt.Printf("  tabscope v%s\n", version)
	fmt.Println("  Request ledger for browser-inspection extensions")
	fmt.Println()
	fmt.Printf("  Server:   http://%s\n", srv.Addr())
	fmt.Printf("  Capacity: %d records, %d tabs\n", cfg.MaxRecords, cfg.MaxTabs)
	if cfg.APIKey != "" {
		fmt.Printf("  Auth:     %s header required\n", server.KeyHeader)
	}
	fmt.Println()
	fmt.Println("  Ready. Press Ctrl+C to stop.")
	fmt.Println()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "tabscope: %v\n", err)
			os.Exit(1)
		}
	case sig := <-stop:
		fmt.Fprintf(os.Stderr, "[tabscope] received %s, shutting down\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "[tabscope] shutdown: %v\n", err)
		}
	}
}
