// Package codec shrinks arbitrary input images toward a transfer byte budget.
//
// Re-encoding is a two-step policy: a one-time proportional downscale when the
// image is wider than the policy allows, then a monotone quality walk from
// InitialQuality down to MinQuality until the JPEG output fits the budget.
// Encoding never fails: anything that cannot be decoded is passed through
// unchanged so the upload still gets a chance.
package codec

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/ecoscan/pkg/types"
)

// Default policy values, matching the transport-side budget in config.
const (
	DefaultMaxBytes       = 8 << 20
	DefaultMaxWidthPx     = 1600
	DefaultInitialQuality = 0.92
	DefaultQualityStep    = 0.07
	DefaultMinQuality     = 0.35
)

// DefaultPolicy returns the encoding policy used when the caller supplies none.
func DefaultPolicy() types.EncodingPolicy {
	return types.EncodingPolicy{
		MaxBytes:       DefaultMaxBytes,
		MaxWidthPx:     DefaultMaxWidthPx,
		InitialQuality: DefaultInitialQuality,
		QualityStep:    DefaultQualityStep,
		MinQuality:     DefaultMinQuality,
	}
}

// Encoder re-encodes source images under an encoding policy.
type Encoder struct {
	logger *slog.Logger
}

// New creates an Encoder. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{logger: logger.With("component", "codec")}
}

// Encode produces a size-bounded JPEG from src under policy.
//
// The quality walk is deterministic and bounded by
// ceil((InitialQuality-MinQuality)/QualityStep) iterations; the last blob
// produced is returned even when the budget was never met. Decode failures and
// degenerate inputs (zero bytes, zero dimensions) degrade to a passthrough of
// the original payload with BudgetMet=false. ctx is consulted between encode
// iterations only; a single in-flight encode pass runs to completion.
func (e *Encoder) Encode(ctx context.Context, src types.SourceImage, policy types.EncodingPolicy) types.EncodedBlob {
	policy = sanitize(policy)

	if len(src.Data) == 0 {
		return passthrough(src)
	}

	img, err := decodeImage(src.Data)
	if err != nil {
		e.logger.Warn("decode failed, passing source through unchanged",
			"filename", src.Filename, "media_type", src.MediaType, "error", err)
		return passthrough(src)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return passthrough(src)
	}

	// One-time proportional resize; imaging rounds the derived height and
	// keeps it >= 1.
	if policy.MaxWidthPx > 0 && bounds.Dx() > policy.MaxWidthPx {
		img = imaging.Resize(img, policy.MaxWidthPx, 0, imaging.Lanczos)
	}

	quality := policy.InitialQuality
	data, err := encodeJPEG(img, quality)
	if err != nil {
		e.logger.Warn("jpeg encode failed, passing source through unchanged",
			"filename", src.Filename, "error", err)
		return passthrough(src)
	}

	for int64(len(data)) > policy.MaxBytes && quality > policy.MinQuality+qualityEpsilon {
		if ctx.Err() != nil {
			break
		}
		quality -= policy.QualityStep
		if quality < policy.MinQuality {
			quality = policy.MinQuality
		}
		next, err := encodeJPEG(img, quality)
		if err != nil {
			break
		}
		data = next
	}

	return types.EncodedBlob{
		Data:      data,
		MediaType: "image/jpeg",
		Filename:  jpegFilename(src.Filename),
		Quality:   quality,
		BudgetMet: int64(len(data)) <= policy.MaxBytes,
	}
}

// qualityEpsilon absorbs float drift in the quality walk so a step landing
// exactly on MinQuality is still attempted.
const qualityEpsilon = 1e-9

func passthrough(src types.SourceImage) types.EncodedBlob {
	return types.EncodedBlob{
		Data:      src.Data,
		MediaType: src.MediaType,
		Filename:  src.Filename,
		BudgetMet: false,
	}
}

// decodeImage decodes image bytes with WebP fallback support.
func decodeImage(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return webp.Decode(bytes.NewReader(data))
}

func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	q := int(quality*100 + 0.5)
	if q < 1 {
		q = 1
	} else if q > 100 {
		q = 100
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jpegFilename(name string) string {
	if name == "" {
		return "upload.jpg"
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".jpg"
}

// sanitize repairs a malformed policy so the quality walk always terminates.
func sanitize(p types.EncodingPolicy) types.EncodingPolicy {
	if p.MaxBytes <= 0 {
		p.MaxBytes = DefaultMaxBytes
	}
	if p.InitialQuality <= 0 || p.InitialQuality > 1 {
		p.InitialQuality = DefaultInitialQuality
	}
	if p.QualityStep <= 0 {
		p.QualityStep = DefaultQualityStep
	}
	if p.MinQuality < 0 {
		p.MinQuality = 0
	}
	if p.MinQuality > p.InitialQuality {
		p.MinQuality = p.InitialQuality
	}
	return p
}
