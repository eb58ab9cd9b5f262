// Package acquire reads source images from disk and applies the acquisition
// byte limit. Files over the limit are rejected outright; shrinking toward
// the tighter transport budget is the codec's job, not acquisition's.
package acquire

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/webp"

	"github.com/menta2k/ecoscan/internal/utils"
	"github.com/menta2k/ecoscan/pkg/types"
)

// ErrTooLarge reports a file over the acquisition byte limit.
var ErrTooLarge = errors.New("image exceeds acquisition size limit")

// ErrNotImage reports a file without a recognized image extension.
var ErrNotImage = errors.New("not an image file")

// FromFile reads an image file into a SourceImage, rejecting files over
// maxBytes. Pixel dimensions are captured best-effort from the header and
// left at zero when the format is not decodable locally.
func FromFile(path string, maxBytes int64) (types.SourceImage, error) {
	if !utils.IsImageFile(path) {
		return types.SourceImage{}, fmt.Errorf("%s: %w", path, ErrNotImage)
	}

	info, err := os.Stat(path)
	if err != nil {
		return types.SourceImage{}, fmt.Errorf("failed to stat image: %w", err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return types.SourceImage{}, fmt.Errorf("%s is %s (limit %s): %w",
			path, utils.FormatBytes(info.Size()), utils.FormatBytes(maxBytes), ErrTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return types.SourceImage{}, fmt.Errorf("failed to read image: %w", err)
	}

	return FromBytes(data, filepath.Base(path), maxBytes)
}

// FromBytes wraps an in-memory payload (e.g. a camera capture) as a
// SourceImage under the same acquisition limit.
func FromBytes(data []byte, filename string, maxBytes int64) (types.SourceImage, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return types.SourceImage{}, fmt.Errorf("%s is %s (limit %s): %w",
			filename, utils.FormatBytes(int64(len(data))), utils.FormatBytes(maxBytes), ErrTooLarge)
	}

	src := types.SourceImage{
		Data:      data,
		MediaType: utils.MediaTypeForExtension(filename),
		Filename:  filename,
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		src.Width = cfg.Width
		src.Height = cfg.Height
	}
	return src, nil
}
