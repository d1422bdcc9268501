package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dga-engine/internal/api"
	"dga-engine/internal/normative"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		Long: `Serve exposes classification, training, evaluation, sample import and the
normative methods as a JSON API, plus Prometheus metrics on /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts.settings)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == 0 {
				port = a.settings.ServerPort
			}
			if err := a.service.LoadModel(); err != nil {
				log.Warn().Err(err).Msg("No model loaded; train one through the API or the train command")
			}

			srv := api.NewServer(a.service, normative.NewRules(), a.store, api.Options{
				Port:     port,
				Gatherer: a.registry,
				Metrics:  a.metrics,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			log.Info().Msg("Shutting down API server")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}
