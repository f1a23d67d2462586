// fishid identifies the animal in a photo.
//
// Usage:
//
//	fishid serve                 # web API on :3000
//	fishid identify reef.jpg     # one file
//	fishid snap --mobile         # one frame from the local camera
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-fishid/internal/config"
	"github.com/teslashibe/go-fishid/internal/httpc"
	"github.com/teslashibe/go-fishid/internal/log"
	"github.com/teslashibe/go-fishid/pkg/recognize"
)

var version = "dev"

var (
	configPath string
	logLevel   string
	remoteURL  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fishid",
	Short: "Identify the animal in a photo",
	Long: `fishid sends a photo to a Gemini vision model and prints what the
animal is, where it lives and a few facts about it. Photos come from a file,
the local camera, or a phone connected to the web server.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("fishid version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.fishid/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", "", "send images to a running fishid server instead of Gemini")
	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if remoteURL != "" {
		c.RemoteURL = remoteURL
	}
	if problems := c.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}

	log.InitWriter(cmd.ErrOrStderr(), c.LogLevel)
	cfg = c
	return nil
}

// newOrchestrator picks the HTTP transport when a remote server is
// configured and Gemini otherwise. The returned func releases the transport.
func newOrchestrator(ctx context.Context) (*recognize.Orchestrator, func(), error) {
	opts := []recognize.Option{recognize.WithTimeout(cfg.Gemini.Timeout)}

	if cfg.RemoteURL != "" {
		t, err := recognize.NewHTTP(cfg.RemoteURL,
			recognize.WithHTTPClient(httpc.NewClient(cfg.Gemini.Timeout)))
		if err != nil {
			return nil, nil, err
		}
		log.Debug("using remote server", "url", cfg.RemoteURL)
		return recognize.New(t, opts...), func() {}, nil
	}

	g, err := recognize.NewGemini(ctx,
		recognize.WithAPIKey(cfg.Gemini.APIKey),
		recognize.WithModel(cfg.Gemini.Model),
		recognize.WithPrompt(cfg.Gemini.Prompt),
	)
	if errors.Is(err, recognize.ErrNoAPIKey) {
		return nil, nil, errors.New("no Gemini API key: set GEMINI_API_KEY or use --remote")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("gemini: %w", err)
	}
	log.Debug("using gemini", "model", g.Model())
	return recognize.New(g, opts...), func() { g.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
