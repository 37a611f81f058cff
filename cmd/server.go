package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/server"
)

var (
	serverHost        string
	serverPort        int
	serverReposDir    string
	serverAuthEnabled bool
	serverJWTSecret   string
	serverTLSCert     string
	serverTLSKey      string
	serverWebhooks    []string
	serverVerbose     bool
)

// serverCmd runs the HTTP front door wired in internal/server, serving
// zero or more repositories rooted under --repos-dir over the
// node/chunk wire protocol internal/sync.Client speaks, plus the
// workspace and data-frame endpoints 'oxen workspace'/'oxen df' drive.
// It never opens a single repository via core.FindRepository:
// repositories are discovered lazily, by
// namespace/name, as requests for them arrive.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve repositories over HTTP for push, pull, clone, and workspace access",
	RunE: func(cmd *cobra.Command, args []string) error {
		var logger *zap.Logger
		var err error
		if serverVerbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer logger.Sync()

		opts := server.Options{
			Host:        serverHost,
			Port:        serverPort,
			ReposDir:    serverReposDir,
			AuthEnabled: serverAuthEnabled,
			Verbose:     serverVerbose,
			TLSCertFile: serverTLSCert,
			TLSKeyFile:  serverTLSKey,
			Webhooks:    serverWebhooks,
		}
		if serverAuthEnabled {
			if serverJWTSecret == "" {
				return fmt.Errorf("--jwt-secret is required when --auth is set")
			}
			opts.JWTSecret = []byte(serverJWTSecret)
		}

		s := server.New(opts, logger)
		if err := s.Init(); err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case <-sigCh:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Stop(ctx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVar(&serverHost, "host", server.DefaultHost, "Address to listen on")
	serverCmd.Flags().IntVar(&serverPort, "port", server.DefaultPort, "Port to listen on")
	serverCmd.Flags().StringVar(&serverReposDir, "repos-dir", server.DefaultReposDir, "Directory repositories are stored under, namespaced as <repos-dir>/<ns>/<name>")
	serverCmd.Flags().BoolVar(&serverAuthEnabled, "auth", server.DefaultAuthEnabled, "Require a bearer token on every request")
	serverCmd.Flags().StringVar(&serverJWTSecret, "jwt-secret", "", "Secret used to verify bearer tokens (required with --auth)")
	serverCmd.Flags().StringVar(&serverTLSCert, "tls-cert", "", "TLS certificate file (enables HTTPS together with --tls-key)")
	serverCmd.Flags().StringVar(&serverTLSKey, "tls-key", "", "TLS key file")
	serverCmd.Flags().StringSliceVar(&serverWebhooks, "webhook", nil, "Webhook URL to notify on repository events (repeatable)")
	serverCmd.Flags().BoolVarP(&serverVerbose, "verbose", "v", false, "Use a development (human-readable, debug-level) logger")
}
