// Package ecoscan analyzes photos of recyclable items against a
// classification backend.
//
// The pipeline shrinks the image under a transfer byte budget, uploads it
// with progress feedback and a hard timeout, and normalizes whatever shape
// the backend answers into a single canonical result the caller can render
// unconditionally.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/ecoscan"
//	)
//
//	func main() {
//		client := ecoscan.New()
//
//		result, err := client.AnalyzeFile(context.Background(), "bottle.jpg", nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		for _, det := range result.Detections {
//			fmt.Printf("%s (%.0f%%)\n", det.Label, det.Confidence*100)
//		}
//		for _, rec := range result.Recommendations {
//			fmt.Println(rec)
//		}
//	}
//
// The package consists of four core components:
//
// 1. Codec (pkg/codec): adaptive re-encoding under the byte budget
// 2. Transport (pkg/transport): progress-observable multipart upload
// 3. Normalizer (pkg/normalize): canonicalization of backend responses
// 4. Pipeline (pkg/pipeline): composition and error translation
//
// Transport failures (timeout, network, rejected upload) are returned as
// distinct error values so callers can tell "server found nothing" apart
// from "server was unreachable".
package ecoscan

import (
	"context"
	"log/slog"

	"github.com/menta2k/ecoscan/internal/config"
	"github.com/menta2k/ecoscan/pkg/acquire"
	"github.com/menta2k/ecoscan/pkg/centers"
	"github.com/menta2k/ecoscan/pkg/codec"
	"github.com/menta2k/ecoscan/pkg/pipeline"
	"github.com/menta2k/ecoscan/pkg/transport"
	"github.com/menta2k/ecoscan/pkg/types"
)

// Version of the ecoscan library
const Version = "1.0.0"

// Client provides a high-level interface to the analysis pipeline and the
// auxiliary centers endpoint.
type Client struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	centers  *centers.Client
}

// New creates a Client with default configuration.
func New() *Client {
	return NewWithConfig(config.Default(), nil)
}

// NewWithConfig creates a Client with custom configuration. A nil logger
// falls back to slog.Default.
func NewWithConfig(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	uploader := transport.New(logger)
	return &Client{
		cfg:      cfg,
		pipeline: pipeline.New(codec.New(logger), uploader, logger),
		centers:  centers.New(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout),
	}
}

// Policy returns the encoding policy derived from the configuration.
func (c *Client) Policy() types.EncodingPolicy {
	return types.EncodingPolicy{
		MaxBytes:       c.cfg.Encoding.MaxBytes,
		MaxWidthPx:     c.cfg.Encoding.MaxWidthPx,
		InitialQuality: c.cfg.Encoding.InitialQuality,
		QualityStep:    c.cfg.Encoding.QualityStep,
		MinQuality:     c.cfg.Encoding.MinQuality,
	}
}

// AnalyzeFile reads an image file and runs the full analysis pipeline.
func (c *Client) AnalyzeFile(ctx context.Context, path string, onProgress transport.ProgressFunc) (types.AnalysisResult, error) {
	src, err := acquire.FromFile(path, c.cfg.Acquire.MaxBytes)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	return c.Analyze(ctx, src, onProgress)
}

// Analyze runs the full analysis pipeline over an already-acquired image.
func (c *Client) Analyze(ctx context.Context, src types.SourceImage, onProgress transport.ProgressFunc) (types.AnalysisResult, error) {
	return c.pipeline.Analyze(ctx, src, pipeline.Options{
		BaseURL:    c.cfg.Backend.BaseURL,
		Username:   c.cfg.Backend.Username,
		Policy:     c.Policy(),
		Timeout:    c.cfg.Backend.UploadTimeout,
		OnProgress: onProgress,
	})
}

// Centers lists the recycling centers known to the backend.
func (c *Client) Centers(ctx context.Context) ([]types.RecyclingCenter, error) {
	return c.centers.List(ctx)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
