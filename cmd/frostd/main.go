// Command frostd runs the FROST relay server: the untrusted session broker
// coordinators and participants authenticate to and exchange encrypted
// signing/DKG traffic through.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/frostsig/frostrelay/relay"
)

// DefaultPort is the relay's default listening port.
const DefaultPort = 2744

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		addr          string
		certFile      string
		keyFile       string
		noTLSInsecure bool
		logLevel      string
	)

	cmd := &cobra.Command{
		Use:   "frostd",
		Short: "Run the FROST relay server",
		Long: `frostd brokers FROST signing and DKG sessions between a coordinator and
its participants. It never sees plaintext: every message it forwards is
already end-to-end encrypted by its sender (see package cipher). By
default it listens on TLS; pass --no-tls-very-insecure to instead listen
on plaintext HTTP bound to loopback only, for local testing or behind a
TLS-terminating proxy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("frostd: invalid --log-level %q: %w", logLevel, err)
			}
			logrus.SetLevel(level)
			return run(cmd.Context(), addr, certFile, keyFile, noTLSInsecure)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", fmt.Sprintf(":%d", DefaultPort), "address to listen on")
	flags.StringVar(&certFile, "tls-cert", "", "PEM certificate file (required unless --no-tls-very-insecure)")
	flags.StringVar(&keyFile, "tls-key", "", "PEM private key file (required unless --no-tls-very-insecure)")
	flags.BoolVar(&noTLSInsecure, "no-tls-very-insecure", false, "listen on plaintext HTTP bound to loopback only, instead of TLS")
	flags.StringVar(&logLevel, "log-level", "info", "logrus level: trace, debug, info, warn, error")

	return cmd
}

func run(ctx context.Context, addr, certFile, keyFile string, noTLSInsecure bool) error {
	if !noTLSInsecure && (certFile == "" || keyFile == "") {
		return errors.New("frostd: --tls-cert and --tls-key are required unless --no-tls-very-insecure is set")
	}

	server := relay.NewServer()
	defer server.Close()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	if noTLSInsecure {
		// Plaintext defaults to loopback. An operator who passes an explicit
		// non-loopback --addr is choosing to expose a plaintext relay, which
		// this flag's name makes as loud as possible without refusing to
		// start (the intended production use is behind a TLS-terminating
		// proxy).
		if addr == fmt.Sprintf(":%d", DefaultPort) {
			addr = fmt.Sprintf("127.0.0.1:%d", DefaultPort)
			httpServer.Addr = addr
		}
		logrus.WithFields(logrus.Fields{"package": "frostd", "addr": addr}).
			Warn("listening on plaintext HTTP, intended for loopback/test use only")
		go func() { errCh <- httpServer.ListenAndServe() }()
	} else {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("frostd: load TLS certificate: %w", err)
		}
		httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		logrus.WithFields(logrus.Fields{"package": "frostd", "addr": addr}).Info("listening on TLS")
		go func() { errCh <- httpServer.ListenAndServeTLS("", "") }()
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("frostd: serve: %w", err)
		}
		return nil
	case <-sigCtx.Done():
		logrus.WithField("package", "frostd").Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
