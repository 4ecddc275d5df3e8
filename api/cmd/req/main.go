package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ffmemes-ocr/api/internal/client"
	"ffmemes-ocr/api/internal/config"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var cfgPath, apiURL, imagePath, lang string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:          "req",
		Short:        "Send a sample image to the OCR service and print the result",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := config.LoadRequest(cfgPath)
			if err != nil {
				return err
			}
			fl := cmd.Flags()
			if fl.Changed("url") {
				pc.APIURL = apiURL
			}
			if fl.Changed("image") {
				pc.ImagePath = imagePath
			}
			if fl.Changed("lang") {
				pc.Lang = lang
			}
			if err := pc.Validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return send(ctx, out, pc)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&cfgPath, "config", "req.yaml", "optional YAML file with api_url, image_path, lang")
	fl.StringVar(&apiURL, "url", "", "service base URL (overrides OCR_API_URL)")
	fl.StringVar(&imagePath, "image", "", "image to send (overrides OCR_IMAGE_PATH)")
	fl.StringVar(&lang, "lang", "", "ru or en (overrides OCR_LANG)")
	fl.DurationVar(&timeout, "timeout", 5*time.Minute, "overall request timeout")
	return cmd
}

func send(ctx context.Context, out io.Writer, pc *config.RequestConfig) error {
	img, err := os.ReadFile(pc.ImagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	c := client.New(pc.APIURL)
	start := time.Now()
	resp, err := c.Predict(ctx, img, pc.Lang)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, resp.Raw, "", "  ") != nil {
		pretty.Reset()
		pretty.Write(resp.Raw)
	}
	if resp.Failed() {
		color.New(color.FgRed).Fprintln(out, pretty.String())
	} else {
		fmt.Fprintln(out, pretty.String())
		color.New(color.FgGreen).Fprintf(out, "%d detections\n", len(resp.Result))
	}
	color.New(color.FgCyan).Fprintf(out, "elapsed: %.3fs\n", elapsed.Seconds())
	return nil
}
