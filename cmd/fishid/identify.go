package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-fishid/internal/termview"
	"github.com/teslashibe/go-fishid/pkg/media"
	"github.com/teslashibe/go-fishid/pkg/recognize"
	"github.com/teslashibe/go-fishid/pkg/segment"
)

var (
	outputJSON bool
	outputRaw  bool
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify the animal in an image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentify,
}

func init() {
	addOutputFlags(identifyCmd)
	rootCmd.AddCommand(identifyCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print the raw text and blocks as JSON")
	cmd.Flags().BoolVar(&outputRaw, "raw", false, "print the model's text unformatted")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	p, err := media.SelectFilePath(args[0])
	if err != nil {
		return err
	}
	return identifyAndPrint(cmd, p)
}

// identifyAndPrint recognizes p and writes the result to cmd's output.
func identifyAndPrint(cmd *cobra.Command, p media.Payload) error {
	ctx := cmd.Context()
	o, release, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer release()

	view := termview.New(nil)
	raw, err := o.Recognize(ctx, p)
	if err != nil {
		cmd.PrintErrln(view.RenderError(recognize.UserMessage(err)))
		return err
	}
	doc := o.Segment(raw)

	switch {
	case outputJSON:
		return printJSON(cmd, raw, doc)
	case outputRaw:
		cmd.Println(raw)
	default:
		cmd.Println(view.Render(doc))
	}
	return nil
}

func printJSON(cmd *cobra.Command, raw string, doc *segment.Document) error {
	data, err := json.MarshalIndent(struct {
		Results  string            `json:"results"`
		Document *segment.Document `json:"document"`
	}{raw, doc}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
