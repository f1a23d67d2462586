package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-fishid/internal/log"
	"github.com/teslashibe/go-fishid/pkg/media"
	"github.com/teslashibe/go-fishid/pkg/relay"
	"github.com/teslashibe/go-fishid/pkg/web"
)

var (
	serveStatic   string
	serveNoCamera bool
	serveDebug    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web API",
	Long: `Serves the upload, capture and results endpoints. With camera.kind
"relay" the capture endpoints drive a browser connected to /ws/camera;
with "local" they use a camera attached to this machine.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "directory to serve at /")
	serveCmd.Flags().BoolVar(&serveNoCamera, "no-camera", false, "disable the capture endpoints")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "log every request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, release, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	wc := web.DefaultConfig()
	wc.Port = cfg.Port
	wc.MaxUploadBytes = cfg.MaxUploadBytes
	wc.StaticDir = serveStatic
	wc.Debug = serveDebug
	if cfg.Camera.OpenTimeout > 0 {
		wc.OpenTimeout = cfg.Camera.OpenTimeout
	}

	var opts []web.Option
	if !serveNoCamera {
		var dev media.Device
		if cfg.Camera.Kind == "relay" {
			hub := relay.NewHub()
			opts = append(opts, web.WithRelay(hub))
			dev = hub
		} else {
			dev = newLocalDevice()
		}
		opts = append(opts, web.WithAcquirer(media.NewAcquirer(dev, media.WithQuality(cfg.Camera.Quality))))
	}

	srv := web.NewServer(wc, o, opts...)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
