package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-fishid/internal/log"
	"github.com/teslashibe/go-fishid/internal/termview"
	"github.com/teslashibe/go-fishid/pkg/camera"
	"github.com/teslashibe/go-fishid/pkg/media"
)

var (
	snapMobile bool
	snapSave   string
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Capture one frame from the local camera and identify it",
	Long: `Opens the local camera, grabs a single frame and identifies it. The
rear-facing device at 1280x720 is used with --mobile, the front-facing one
at 640x480 otherwise. Device indexes come from the camera section of the
config file.`,
	Args: cobra.NoArgs,
	RunE: runSnap,
}

func init() {
	snapCmd.Flags().BoolVar(&snapMobile, "mobile", false, "use the rear camera at 1280x720")
	snapCmd.Flags().StringVar(&snapSave, "save", "", "also write the captured JPEG to this path")
	addOutputFlags(snapCmd)
	rootCmd.AddCommand(snapCmd)
}

func newLocalDevice() *camera.Device {
	cc := camera.DefaultConfig()
	cc.EnvironmentDevice = cfg.Camera.EnvironmentDevice
	cc.UserDevice = cfg.Camera.UserDevice
	if cfg.Camera.OpenTimeout > 0 {
		cc.OpenTimeout = cfg.Camera.OpenTimeout
	}
	return camera.NewDevice(camera.WithConfig(cc), camera.WithLogger(log.Component("camera")))
}

func runSnap(cmd *cobra.Command, args []string) error {
	a := media.NewAcquirer(newLocalDevice(), media.WithQuality(cfg.Camera.Quality))
	defer a.Shutdown()

	p, err := a.Snapshot(cmd.Context(), snapMobile)
	if err != nil {
		cmd.PrintErrln(termview.New(nil).RenderError(media.UserMessage(err)))
		return err
	}

	if snapSave != "" {
		if err := os.WriteFile(snapSave, p.Bytes(), 0o644); err != nil {
			return fmt.Errorf("save frame: %w", err)
		}
		log.Info("frame saved", "path", snapSave, "bytes", p.Len())
	}
	return identifyAndPrint(cmd, p)
}
