package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/powderline/quiver/internal/server"
	"github.com/powderline/quiver/pkg/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only query API",
	Long: `Serve exposes the catalog over HTTP: runs, boards with their
listings, and per-board spec provenance. The API is read-only and can
run alongside the pipeline.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := viper.GetString("listen")
		if addr == "" {
			addr, _ = cmd.Flags().GetString("listen")
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.New(a.store, a.engine).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logging.Info().Str("addr", addr).Msg("Serving query API")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}
