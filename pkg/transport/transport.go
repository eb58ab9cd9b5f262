// Package transport performs the multipart upload to the classification
// backend with progress reporting, an explicit wall-clock timeout and
// cancellation.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"sync/atomic"
	"time"

	"github.com/menta2k/ecoscan/pkg/types"
)

// DetectPath is the backend classification endpoint, relative to the base URL.
const DetectPath = "/detect"

// ErrTimeout reports that no response arrived within the upload deadline.
// The in-flight request is aborted when the deadline fires, not abandoned.
var ErrTimeout = errors.New("upload timed out")

// NetworkError wraps a transport-level failure (connection refused, reset,
// DNS, aborted body read).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RejectedError reports a non-2xx response whose body could not be used as a
// structured payload. Parseable error bodies are not rejected; they are
// forwarded downstream so the normalizer can judge them.
type RejectedError struct {
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upload rejected with status %d", e.StatusCode)
}

// RawResponse carries whatever the backend returned. Value is the decoded
// JSON payload, nil when the body was empty or not parseable.
type RawResponse struct {
	StatusCode int
	Body       []byte
	Value      any
}

// ProgressFunc receives upload progress as a fraction in [0,1]. Fractions are
// non-decreasing within one upload and stop after the call settles.
type ProgressFunc func(fraction float64)

// Request describes one upload.
type Request struct {
	Blob       types.EncodedBlob
	Endpoint   string
	Username   string
	Timeout    time.Duration
	OnProgress ProgressFunc
}

// Uploader posts encoded blobs to the classification backend.
type Uploader struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(u *Uploader) {
		if client != nil {
			u.httpClient = client
		}
	}
}

// New constructs an Uploader. The default HTTP client carries no timeout of
// its own; the per-upload deadline in Upload bounds the call instead.
func New(logger *slog.Logger, opts ...Option) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	u := &Uploader{
		httpClient: &http.Client{},
		logger:     logger.With("component", "transport"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload posts the blob as a multipart form (fields: image, username) and
// returns the raw response. Exactly one of a RawResponse or an error is
// produced per call; the error is ErrTimeout, a *NetworkError or a
// *RejectedError, or the context's own error when the caller cancelled.
func (u *Uploader) Upload(ctx context.Context, req Request) (RawResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename=%q`, req.Blob.Filename))
	header.Set("Content-Type", req.Blob.MediaType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return RawResponse{}, &NetworkError{Err: fmt.Errorf("create image part: %w", err)}
	}
	if _, err := part.Write(req.Blob.Data); err != nil {
		return RawResponse{}, &NetworkError{Err: fmt.Errorf("write image part: %w", err)}
	}
	if err := writer.WriteField("username", req.Username); err != nil {
		return RawResponse{}, &NetworkError{Err: fmt.Errorf("write username field: %w", err)}
	}
	if err := writer.Close(); err != nil {
		return RawResponse{}, &NetworkError{Err: fmt.Errorf("close multipart writer: %w", err)}
	}

	total := int64(body.Len())

	// The deadline context is the authoritative timer: when it fires the
	// in-flight request is aborted and the connection freed. cancel releases
	// the timer on every exit path.
	uploadCtx := ctx
	cancel := context.CancelFunc(func() {})
	if req.Timeout > 0 {
		uploadCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	var settled atomic.Bool
	defer settled.Store(true)
	progress := newProgressEmitter(req.OnProgress, &settled)

	request, err := http.NewRequestWithContext(uploadCtx, http.MethodPost, req.Endpoint,
		&progressReader{r: body, total: total, emit: progress.emit})
	if err != nil {
		return RawResponse{}, &NetworkError{Err: fmt.Errorf("build request: %w", err)}
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.ContentLength = total

	u.logger.Debug("uploading image",
		"endpoint", req.Endpoint, "bytes", total, "filename", req.Blob.Filename)

	resp, err := u.httpClient.Do(request)
	if err != nil {
		return RawResponse{}, u.classify(ctx, uploadCtx, req.Timeout, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{}, u.classify(ctx, uploadCtx, req.Timeout, err)
	}

	raw := RawResponse{StatusCode: resp.StatusCode, Body: payload}
	if len(payload) > 0 {
		var value any
		if jsonErr := json.Unmarshal(payload, &value); jsonErr == nil {
			raw.Value = value
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// A backend that answers failures with a structured body still gets a
		// say: forward the payload and let the normalizer decide.
		if raw.Value == nil {
			u.logger.Warn("upload rejected", "status", resp.StatusCode)
			return RawResponse{}, &RejectedError{StatusCode: resp.StatusCode}
		}
		u.logger.Debug("non-2xx response with parseable body forwarded", "status", resp.StatusCode)
	}

	progress.emit(1)
	return raw, nil
}

// classify maps an aborted request to the error taxonomy: the upload deadline
// firing wins over generic network failure, and caller cancellation is
// propagated as-is.
func (u *Uploader) classify(ctx, uploadCtx context.Context, timeout time.Duration, err error) error {
	if uploadCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		u.logger.Warn("upload timed out", "timeout", timeout)
		return fmt.Errorf("no response within %s: %w", timeout, ErrTimeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &NetworkError{Err: err}
}

// progressEmitter enforces the progress contract: non-decreasing fractions,
// nothing delivered after settlement. The HTTP transport writes the body from
// its own goroutine, so emission is serialized.
type progressEmitter struct {
	fn      ProgressFunc
	settled *atomic.Bool
	mu      sync.Mutex
	last    float64
}

func newProgressEmitter(fn ProgressFunc, settled *atomic.Bool) *progressEmitter {
	return &progressEmitter{fn: fn, settled: settled, last: -1}
}

func (p *progressEmitter) emit(fraction float64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settled.Load() {
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction <= p.last {
		return
	}
	p.last = fraction
	p.fn(fraction)
}

// progressReader reports the fraction of the request body consumed by the
// HTTP transport. The body is fully buffered, so loaded/total is always
// deterministic.
type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	emit   func(float64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 && pr.total > 0 {
		pr.loaded += int64(n)
		pr.emit(float64(pr.loaded) / float64(pr.total))
	}
	return n, err
}
