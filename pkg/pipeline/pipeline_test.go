package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/menta2k/ecoscan/pkg/codec"
	"github.com/menta2k/ecoscan/pkg/transport"
	"github.com/menta2k/ecoscan/pkg/types"
)

func testPipeline() *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(codec.New(logger), transport.New(logger), logger)
}

func testSource(t *testing.T) types.SourceImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return types.SourceImage{
		Data:      buf.Bytes(),
		MediaType: "image/jpeg",
		Filename:  "bottle.jpg",
	}
}

func defaultOptions(baseURL string) Options {
	return Options{
		BaseURL:  baseURL,
		Username: "alex",
		Policy:   codec.DefaultPolicy(),
		Timeout:  5 * time.Second,
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("expected path /detect, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"success": true,
			"detected_objects": [{"name": "bottle", "conf": 0.92}],
			"eco_points": 10,
			"carbon_saved_kg": 0.5,
			"debug": {"model_loaded": true, "detections_count": 1}
		}`)
	}))
	defer server.Close()

	result, err := testPipeline().Analyze(context.Background(), testSource(t), defaultOptions(server.URL))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if !result.Success {
		t.Error("expected success")
	}
	if len(result.Detections) != 1 || result.Detections[0].Label != "bottle" {
		t.Errorf("unexpected detections %+v", result.Detections)
	}
	if result.EcoPoints != 10 {
		t.Errorf("expected ecoPoints 10, got %d", result.EcoPoints)
	}
	if result.Filename != "bottle.jpg" {
		t.Errorf("expected blob filename carried through, got %q", result.Filename)
	}
	if !result.Diagnostics.ModelLoaded || result.Diagnostics.DetectionCount != 1 {
		t.Errorf("unexpected diagnostics %+v", result.Diagnostics)
	}
}

func TestAnalyzeTimeoutSurfacedAndNormalizerSkipped(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	opts := defaultOptions(server.URL)
	opts.Timeout = 50 * time.Millisecond

	result, err := testPipeline().Analyze(context.Background(), testSource(t), opts)

	if !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("expected transport.ErrTimeout, got %v", err)
	}
	// No server opinion exists: nothing may be fabricated.
	if result.Success || len(result.Detections) != 0 || len(result.Recommendations) != 0 {
		t.Errorf("timeout must not produce a normalized result, got %+v", result)
	}
}

func TestAnalyzeCancelledBeforeUpload(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testPipeline().Analyze(ctx, testSource(t), defaultOptions(server.URL))

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("cancelled analyze must not reach the backend, got %d requests", hits.Load())
	}
}

func TestAnalyzeUndecodableSourceStillUploads(t *testing.T) {
	garbage := []byte("not an image at all")
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, _, err := r.FormFile("image")
		if err == nil {
			received, _ = io.ReadAll(file)
			file.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success": true, "detected_objects": []}`)
	}))
	defer server.Close()

	src := types.SourceImage{Data: garbage, MediaType: "application/octet-stream", Filename: "junk.bin"}
	result, err := testPipeline().Analyze(context.Background(), src, defaultOptions(server.URL))
	if err != nil {
		t.Fatalf("codec trouble must not abort the pipeline: %v", err)
	}

	if !bytes.Equal(received, garbage) {
		t.Error("expected the original bytes uploaded as fallback")
	}
	if !result.Success {
		t.Error("expected the backend verdict to pass through")
	}
}

func TestAnalyzeConcurrentCallsAreIndependent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success": true, "detected_objects": [{"name": "can", "conf": 0.7}]}`)
	}))
	defer server.Close()

	p := testPipeline()
	src := testSource(t)
	opts := defaultOptions(server.URL)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			result, err := p.Analyze(context.Background(), src, opts)
			if err == nil && len(result.Detections) != 1 {
				err = errors.New("unexpected detection count")
			}
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent call %d: %v", i, err)
		}
	}
}

func TestAnalyzeRejectedUploadSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testPipeline().Analyze(context.Background(), testSource(t), defaultOptions(server.URL))

	var rejected *transport.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected *transport.RejectedError, got %v", err)
	}
	if rejected.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rejected.StatusCode)
	}
}

func TestAnalyzeBackendErrorBodyNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"success": false, "error": "no objects recognizable"}`)
	}))
	defer server.Close()

	result, err := testPipeline().Analyze(context.Background(), testSource(t), defaultOptions(server.URL))
	if err != nil {
		t.Fatalf("a parseable error body is a server opinion, not a failure: %v", err)
	}

	if result.Success {
		t.Error("expected success=false from the error body")
	}
	if result.Diagnostics.DetectionCount != 0 {
		t.Errorf("expected zero detections, got %d", result.Diagnostics.DetectionCount)
	}
}
