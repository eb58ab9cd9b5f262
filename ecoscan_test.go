package ecoscan

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/ecoscan/internal/config"
)

func TestNew(t *testing.T) {
	client := New()
	if client == nil {
		t.Fatal("New() returned nil")
	}

	if client.pipeline == nil {
		t.Error("pipeline component is nil")
	}

	if client.centers == nil {
		t.Error("centers component is nil")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Encoding.MaxBytes = 2 << 20
	cfg.Encoding.MaxWidthPx = 1200

	client := NewWithConfig(cfg, nil)
	policy := client.Policy()

	if policy.MaxBytes != 2<<20 {
		t.Errorf("expected MaxBytes 2 MiB, got %d", policy.MaxBytes)
	}
	if policy.MaxWidthPx != 1200 {
		t.Errorf("expected MaxWidthPx 1200, got %d", policy.MaxWidthPx)
	}
	if policy.InitialQuality != 0.92 {
		t.Errorf("expected InitialQuality 0.92, got %v", policy.InitialQuality)
	}
}

func TestAnalyzeFileEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"success": true,
			"detected_objects": [{"name": "bottle", "conf": 0.9}],
			"eco_points": 10
		}`)
	}))
	defer server.Close()

	img := image.NewRGBA(image.Rect(0, 0, 200, 150))
	for y := 0; y < 150; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "bottle.jpg")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Backend.BaseURL = server.URL
	client := NewWithConfig(cfg, nil)

	result, err := client.AnalyzeFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("AnalyzeFile: %v", err)
	}

	if !result.Success || len(result.Detections) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Filename != "bottle.jpg" {
		t.Errorf("expected filename bottle.jpg, got %q", result.Filename)
	}
}
