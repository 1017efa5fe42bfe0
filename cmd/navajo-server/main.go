// Command navajo-server boots the listener, signal, and process-lifespan
// boundaries around the protocol engine, handing each accepted
// connection to a freshly constructed http11.Connection. Lifespan
// startup completes before the listener accepts; a SIGINT/SIGTERM stops
// accepting, cancels every open connection, drains lifespan shutdown,
// then waits, bounded by the grace period, for the connection goroutines
// to return.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/navajo/pkg/navajo/http11"
	"github.com/yourusername/navajo/pkg/navajo/lifespan"
	"github.com/yourusername/navajo/pkg/navajo/logging"
	"github.com/yourusername/navajo/pkg/navajo/socket"
)

var flags struct {
	listen               string
	requestTimeout       time.Duration
	keepAliveTimeout     time.Duration
	maxKeepAliveRequests int
	metricsListen        string
	logLevel             string
	logFile              string
	shutdownGrace        time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "navajo-server",
	Short: "Serve HTTP/1.1 requests over the navajo protocol engine",
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&flags.listen, "listen", "0.0.0.0:3000", "address to accept HTTP/1.1 connections on")
	rootCmd.Flags().DurationVar(&flags.requestTimeout, "request-timeout", http11.RequestTimeout, "in-progress request timeout")
	rootCmd.Flags().DurationVar(&flags.keepAliveTimeout, "keep-alive-timeout", http11.KeepAliveTimeout, "idle keep-alive timeout")
	rootCmd.Flags().IntVar(&flags.maxKeepAliveRequests, "max-keep-alive-requests", http11.MaxKeepAliveRequests, "requests served per connection before forcing close")
	rootCmd.Flags().StringVar(&flags.metricsListen, "metrics-listen", "", "address to serve Prometheus /metrics on (disabled if empty)")
	rootCmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "debug, info, warn, or error")
	rootCmd.Flags().StringVar(&flags.logFile, "log-file", "", "log file path (stdout if empty)")
	rootCmd.Flags().DurationVar(&flags.shutdownGrace, "shutdown-grace", 10*time.Second, "bound on waiting for lifespan shutdown on SIGINT/SIGTERM")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	log, err := logging.New(logging.Options{Level: flags.logLevel, Filename: flags.logFile})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer log.Sync()

	registry := prometheus.DefaultRegisterer
	metrics := http11.NewMetrics(registry)

	if flags.metricsListen != "" {
		go serveMetrics(flags.metricsListen, log)
	}

	lr := lifespan.New(echoApp)
	lr.Start()
	if res := lr.Startup(); !res.OK {
		return fmt.Errorf("application startup failed: %s", res.Message)
	}
	log.Infow("application startup complete")

	tcpAddr, err := net.ResolveTCPAddr("tcp", flags.listen)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", flags.listen, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", flags.listen, err)
	}
	sockCfg := socket.DefaultConfig()
	if err := socket.ApplyListener(ln, sockCfg); err != nil {
		log.Debugw("listener socket tuning skipped", "error", err)
	}
	log.Infow("server listening", "addr", ln.Addr().String())

	cfg := http11.ConnectionConfig{
		RequestTimeout:       flags.requestTimeout,
		KeepAliveTimeout:     flags.keepAliveTimeout,
		MaxKeepAliveRequests: flags.maxKeepAliveRequests,
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	acceptLoop(ctx, ln, sockCfg, cfg, echoApp, log, metrics, &wg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received shutdown signal", "signal", sig.String())

	ln.Close()
	cancel()

	shutdownDone := make(chan struct{})
	go func() {
		lr.Shutdown()
		close(shutdownDone)
	}()
	select {
	case <-shutdownDone:
		log.Infow("application shutdown complete")
	case <-time.After(flags.shutdownGrace):
		log.Errorw("application shutdown did not complete within grace period")
	}

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(flags.shutdownGrace):
		log.Errorw("in-flight connections did not drain within grace period")
	}
	log.Infow("shutdown complete")
	return nil
}

// acceptLoop runs the accept(2) loop on its own goroutine, handing each
// accepted connection to a freshly constructed http11.Connection,
// tracked on wg so run() can wait for in-flight connections to finish
// draining on shutdown.
func acceptLoop(ctx context.Context, ln *net.TCPListener, sockCfg *socket.Config, cfg http11.ConnectionConfig, app http11.App, log *zap.SugaredLogger, metrics *http11.Metrics, wg *sync.WaitGroup) {
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				log.Debugw("accept failed", "error", err)
				return
			}
			if err := socket.Apply(conn, sockCfg); err != nil {
				log.Debugw("connection socket tuning skipped", "error", err)
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				c := http11.NewConnection(conn, app, cfg, log, metrics)
				if err := c.Serve(ctx); err != nil {
					log.Debugw("connection ended", "error", err)
				}
			}()
		}
	}()
}

func serveMetrics(addr string, log *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infow("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorw("metrics server stopped", "error", err)
	}
}
