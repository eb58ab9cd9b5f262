// Package pipeline composes codec, transport and normalizer into one
// analyze operation.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/menta2k/ecoscan/pkg/codec"
	"github.com/menta2k/ecoscan/pkg/normalize"
	"github.com/menta2k/ecoscan/pkg/transport"
	"github.com/menta2k/ecoscan/pkg/types"
)

// Options configures one analyze call.
type Options struct {
	// BaseURL of the classification backend, e.g. http://localhost:5000.
	BaseURL  string
	Username string
	Policy   types.EncodingPolicy
	Timeout  time.Duration
	// OnProgress observes upload progress; it stops firing once the call
	// settles or is cancelled.
	OnProgress transport.ProgressFunc
}

// Pipeline runs the analyze operation: shrink, upload, normalize. Calls are
// fully independent; no state is shared between concurrent analyses.
type Pipeline struct {
	encoder  *codec.Encoder
	uploader *transport.Uploader
	logger   *slog.Logger
}

// New constructs a Pipeline. A nil logger falls back to slog.Default.
func New(encoder *codec.Encoder, uploader *transport.Uploader, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		encoder:  encoder,
		uploader: uploader,
		logger:   logger.With("component", "pipeline"),
	}
}

// Analyze encodes src under the policy, uploads it and normalizes whatever
// the backend answered.
//
// Codec trouble never aborts the call: undecodable input is uploaded as-is.
// Transport failure is returned unmodified (transport.ErrTimeout,
// *transport.NetworkError, *transport.RejectedError, or the context error on
// cancellation) — no server opinion exists in that case, so the normalizer is
// not consulted and no empty result is fabricated.
func (p *Pipeline) Analyze(ctx context.Context, src types.SourceImage, opts Options) (types.AnalysisResult, error) {
	blob := p.encoder.Encode(ctx, src, opts.Policy)
	if err := ctx.Err(); err != nil {
		return types.AnalysisResult{}, err
	}
	if !blob.BudgetMet {
		p.logger.Warn("byte budget not met, uploading best effort",
			"filename", blob.Filename, "bytes", blob.Size(), "quality", blob.Quality)
	}

	raw, err := p.uploader.Upload(ctx, transport.Request{
		Blob:       blob,
		Endpoint:   strings.TrimRight(opts.BaseURL, "/") + transport.DetectPath,
		Username:   opts.Username,
		Timeout:    opts.Timeout,
		OnProgress: opts.OnProgress,
	})
	if err != nil {
		return types.AnalysisResult{}, err
	}

	result := normalize.Normalize(raw.Value)
	if result.Filename == "" {
		result.Filename = blob.Filename
	}

	p.logger.Debug("analysis complete",
		"success", result.Success, "detections", result.Diagnostics.DetectionCount)
	return result, nil
}
