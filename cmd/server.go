package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imagespy/rpm-registry/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serves the registry API",
	Run: func(cmd *cobra.Command, args []string) {
		res, closeRunner := newResolver()
		defer closeRunner()

		api := &http.Server{
			Addr:    viper.GetString("http.address"),
			Handler: web.Init(res, log.StandardLogger().WithField("component", "web")),
		}

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metrics := &http.Server{
			Addr:    viper.GetString("metrics.address"),
			Handler: metricsMux,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		for _, srv := range []*http.Server{api, metrics} {
			srv := srv
			if srv.Addr == "" {
				continue
			}

			g.Go(func() error {
				log.Infof("listening on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}

				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		if err := g.Wait(); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	serverCmd.Flags().String("http.address", ":5000", "ip:port combination to bind the registry API to")
	serverCmd.Flags().String("metrics.address", ":9090", "ip:port combination to bind the metrics endpoint to, empty disables it")
	mustBindFlags(serverCmd)
	rootCmd.AddCommand(serverCmd)
}
