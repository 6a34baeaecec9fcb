package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Veraticus/quest/internal/api"
	"github.com/Veraticus/quest/internal/certs"
	"github.com/Veraticus/quest/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var (
		checkpointEvery time.Duration
		maxUpload       int64
		useTLS          bool
		tlsHosts        []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tracker over HTTP",
		Long: `Serve the JSON API for a web front end.

Requests name the acting user in the X-User-ID header. Prometheus metrics are
served on /metrics.`,
		Example: `  quest serve --addr 127.0.0.1:8080
  quest serve --checkpoint-every 6h
  quest serve --tls --addr 0.0.0.0:8443 --tls-host quest.lan`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []api.Option{api.WithMaxUploadBytes(maxUpload)}
			if useTLS {
				certDir := filepath.Join(filepath.Dir(a.cfg.Database.Path), "certs")
				tlsConfig, err := certs.NewFileManager(certDir, tlsHosts...).TLSConfig()
				if err != nil {
					return fmt.Errorf("failed to prepare TLS certificate: %w", err)
				}
				opts = append(opts, api.WithTLS(tlsConfig))
				slog.Info("Serving HTTPS with a self-signed certificate", "cert_dir", certDir)
			}

			logger := slog.Default()
			srv, err := api.NewServer(api.Deps{
				Users:       a.store,
				Leaderboard: a.store,
				Tracker:     a.tracker,
				Importer:    a.importer(),
				Scorer:      a.scorer,
				Logger:      logger,
				Metrics:     api.NewMetrics(),
			}, opts...)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
			})
			if checkpointEvery > 0 {
				g.Go(func() error {
					return checkpointLoop(ctx, a.store, checkpointEvery)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from server.addr)")
	cmd.Flags().DurationVar(&checkpointEvery, "checkpoint-every", 0, "take an automatic checkpoint this often (0 disables)")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringSliceVar(&tlsHosts, "tls-host", nil, "extra host names or IPs for the certificate")
	cmd.Flags().Int64Var(&maxUpload, "max-upload", 10<<20, "largest accepted import body in bytes")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

// checkpointLoop snapshots the database every interval until ctx is done.
func checkpointLoop(ctx context.Context, store *storage.SQLiteStorage, interval time.Duration) error {
	manager, err := store.NewCheckpointManager()
	if errors.Is(err, storage.ErrInMemoryDatabase) {
		slog.Warn("Periodic checkpoints disabled for in-memory database")
		return nil
	}
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			info, err := manager.AutoCheckpoint(ctx, "serve")
			if err != nil {
				slog.Warn("Periodic checkpoint failed", "error", err)
				continue
			}
			slog.Info("Created checkpoint", "id", info.ID, "size", formatFileSize(info.FileSize))
		}
	}
}
