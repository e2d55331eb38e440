package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/handiism/halftunes/internal/logging"
	"github.com/rs/zerolog"
	"go.bug.st/downloader/v2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProgressInterval = 250 * time.Millisecond
	defaultEventBuffer      = 64
)

// Config holds the settings of an HTTPEngine.
type Config struct {
	// HTTPClient performs the GET requests. It should not carry an
	// overall timeout, since transfers can run for a long time.
	HTTPClient *http.Client

	// Headers are added to every request (User-Agent, for instance).
	Headers map[string]string

	// TempDir is the parent directory of the engine's scratch directory.
	// Empty means os.TempDir().
	TempDir string

	// ProgressInterval is how often byte counts are polled.
	ProgressInterval time.Duration

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int
}

// HTTPEngine is an Engine that downloads over HTTP and resumes with Range
// requests. One instance is meant to be shared by the whole process.
type HTTPEngine struct {
	config   downloader.Config
	tempDir  string
	interval time.Duration
	events   chan Event

	ctx    context.Context
	cancel context.CancelCauseFunc
	group  errgroup.Group

	mu       sync.Mutex
	closed   bool
	active   map[string]context.CancelCauseFunc
	partials map[string]string // handle ID -> partial file kept after pause

	log zerolog.Logger
}

// NewHTTPEngine creates an engine ready to accept Begin calls. Shutdown must
// be called to release its scratch directory.
func NewHTTPEngine(cfg Config) (*HTTPEngine, error) {
	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
			return nil, fmt.Errorf("creating temp directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(cfg.TempDir, "halftunes-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	var client http.Client
	if cfg.HTTPClient != nil {
		client = *cfg.HTTPClient
	}
	if len(cfg.Headers) > 0 {
		client.Transport = &headerTransport{base: client.Transport, headers: cfg.Headers}
	}
	dlConfig := downloader.Config{HttpClient: client}

	ctx, cancel := context.WithCancelCause(context.Background())
	return &HTTPEngine{
		config:   dlConfig,
		tempDir:  dir,
		interval: cfg.ProgressInterval,
		events:   make(chan Event, cfg.EventBuffer),
		ctx:      ctx,
		cancel:   cancel,
		active:   make(map[string]context.CancelCauseFunc),
		partials: make(map[string]string),
		log:      logging.Get("transfer"),
	}, nil
}

// Events returns the channel all events are delivered on. It is closed once
// Shutdown has drained every transfer.
func (e *HTTPEngine) Events() <-chan Event {
	return e.events
}

// TempDir returns the scratch directory holding partial files.
func (e *HTTPEngine) TempDir() string {
	return e.tempDir
}

// Begin starts transferring url into a temporary file.
func (e *HTTPEngine) Begin(url string) *Handle {
	h := newHandle(url)
	e.spawn(h, func(ctx context.Context) {
		e.run(ctx, h, nil)
	})
	return h
}

// BeginFromResumeData continues a transfer stopped by Pause.
func (e *HTTPEngine) BeginFromResumeData(data []byte) *Handle {
	rd, err := decodeResumeData(data)
	if err != nil {
		h := newHandle("")
		e.spawn(h, func(context.Context) {
			e.finish(h, "", err)
		})
		return h
	}

	e.mu.Lock()
	for id, path := range e.partials {
		if path == rd.Path {
			delete(e.partials, id)
		}
	}
	e.mu.Unlock()

	h := newHandle(rd.URL)
	e.spawn(h, func(ctx context.Context) {
		e.run(ctx, h, rd)
	})
	return h
}

// Pause stops the transfer and emits its resume data.
func (e *HTTPEngine) Pause(h *Handle) {
	e.stop(h, errPauseRequested)
}

// Cancel stops the transfer and discards partial data, including the data
// kept by an earlier Pause.
func (e *HTTPEngine) Cancel(h *Handle) {
	if e.stop(h, errCancelRequested) {
		return
	}

	e.mu.Lock()
	path, ok := e.partials[h.ID]
	delete(e.partials, h.ID)
	e.mu.Unlock()
	if ok {
		e.removePartial(path)
	}
}

// Shutdown abandons in-flight transfers, waits for their workers and removes
// the scratch directory.
func (e *HTTPEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel(errShutdown)

	done := make(chan struct{})
	go func() {
		_ = e.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(e.events)
	return os.RemoveAll(e.tempDir)
}

// spawn runs fn on a worker owned by the engine.
func (e *HTTPEngine) spawn(h *Handle, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancelCause(e.ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		cancel(errShutdown)
		e.log.Debug().Str("transfer", h.ID).Msg("Engine closed, transfer not started")
		return
	}
	e.active[h.ID] = cancel

	e.group.Go(func() error {
		defer func() {
			e.mu.Lock()
			delete(e.active, h.ID)
			e.mu.Unlock()
			cancel(nil)
		}()
		fn(ctx)
		return nil
	})
}

// stop cancels an active transfer and reports whether it was active.
func (e *HTTPEngine) stop(h *Handle, cause error) bool {
	if h == nil {
		return false
	}
	e.mu.Lock()
	cancel, ok := e.active[h.ID]
	e.mu.Unlock()
	if ok {
		cancel(cause)
	}
	return ok
}

func (e *HTTPEngine) run(ctx context.Context, h *Handle, rd *resumeData) {
	log := e.log.With().Str("transfer", h.ID).Str("url", h.URL).Logger()

	part := filepath.Join(e.tempDir, h.ID+".part")
	var offset int64
	if rd != nil {
		if err := rd.checkPartial(); err != nil {
			e.removePartial(rd.Path)
			e.finish(h, "", err)
			return
		}
		part = rd.Path
		offset = rd.Offset
		log.Debug().Int64("offset", offset).Msg("Resuming transfer")
	}

	d, err := downloader.DownloadWithConfigAndContext(ctx, part, h.URL, e.config)
	if err != nil {
		e.settle(ctx, h, part, rd, nil, err)
		return
	}

	if err := verifyResponse(d, rd); err != nil {
		_ = d.Close()
		e.removePartial(part)
		e.finish(h, "", err)
		return
	}

	last := d.Completed()
	err = d.RunAndPoll(func(current int64) {
		if current == last {
			return
		}
		e.emit(Event{
			Type:               EventProgress,
			Handle:             h,
			BytesWritten:       current - last,
			TotalBytesWritten:  current,
			TotalBytesExpected: d.Size(),
		})
		last = current
	}, e.interval)

	if err == nil {
		log.Debug().Int64("bytes", d.Completed()).Msg("Transfer complete")
		e.finish(h, part, nil)
		return
	}
	e.settle(ctx, h, part, rd, d, err)
}

// settle reports a transfer that stopped before completion. d is nil when
// the transfer never got past its requests.
func (e *HTTPEngine) settle(ctx context.Context, h *Handle, part string, rd *resumeData, d *downloader.Downloader, err error) {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(cause, errPauseRequested):
		e.emit(Event{Type: EventResumeData, Handle: h, ResumeData: e.capture(h, part, rd, d)})
		e.finish(h, "", fmt.Errorf("%w: paused", ErrCancelled))
	case errors.Is(cause, errCancelRequested), errors.Is(cause, errShutdown):
		e.removePartial(part)
		e.finish(h, "", fmt.Errorf("%w: %v", ErrCancelled, cause))
	default:
		e.removePartial(part)
		e.finish(h, "", fmt.Errorf("%w: %v", ErrNetwork, err))
	}
}

// capture builds resume data for a paused transfer. The partial file is
// dropped when the transport cannot resume it.
func (e *HTTPEngine) capture(h *Handle, part string, rd *resumeData, d *downloader.Downloader) []byte {
	var next *resumeData
	switch {
	case d != nil && acceptsRanges(d, rd) && d.Size() > 0 && d.Completed() > 0 && d.Completed() < d.Size():
		next = &resumeData{
			Version: resumeDataVersion,
			URL:     h.URL,
			Path:    part,
			Offset:  d.Completed(),
			Size:    d.Size(),
			ETag:    d.Resp.Header.Get("ETag"),
		}
		if rd != nil && next.ETag == "" {
			next.ETag = rd.ETag
		}
	case d == nil && rd != nil:
		// Paused before any byte moved: the previous token is still valid.
		next = rd
	}

	if next == nil {
		e.removePartial(part)
		return nil
	}

	data, err := next.encode()
	if err != nil {
		e.log.Warn().Err(err).Str("transfer", h.ID).Msg("Failed to encode resume data")
		e.removePartial(part)
		return nil
	}

	e.mu.Lock()
	e.partials[h.ID] = part
	e.mu.Unlock()
	return data
}

func (e *HTTPEngine) finish(h *Handle, location string, err error) {
	e.emit(Event{Type: EventFinished, Handle: h, Location: location, Err: err})
}

func (e *HTTPEngine) emit(ev Event) {
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
		e.log.Debug().Str("transfer", ev.Handle.ID).Stringer("type", ev.Type).Msg("Engine shut down, event dropped")
	}
}

func (e *HTTPEngine) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.log.Warn().Err(err).Str("path", path).Msg("Failed to remove partial file")
	}
}

// verifyResponse checks the GET response before any byte is copied.
func verifyResponse(d *downloader.Downloader, rd *resumeData) error {
	if rd == nil {
		if d.Resp.StatusCode < 200 || d.Resp.StatusCode > 299 {
			return fmt.Errorf("%w: HTTP %d: %s", ErrNetwork, d.Resp.StatusCode, d.Resp.Status)
		}
		return nil
	}

	if d.Resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: server answered HTTP %d to a range request", ErrResumeFailed, d.Resp.StatusCode)
	}
	if d.Completed() != rd.Offset || d.Size() != rd.Size {
		return fmt.Errorf("%w: remote resource changed", ErrResumeFailed)
	}
	if etag := d.Resp.Header.Get("ETag"); etag != "" && rd.ETag != "" && etag != rd.ETag {
		return fmt.Errorf("%w: entity tag changed", ErrResumeFailed)
	}
	return nil
}

// acceptsRanges reports whether the server can continue the transfer with a
// Range request. A 206 answer to a resumed transfer already proved it.
func acceptsRanges(d *downloader.Downloader, rd *resumeData) bool {
	if rd != nil && d.Resp.StatusCode == http.StatusPartialContent {
		return true
	}
	return d.Resp.Header.Get("Accept-Ranges") == "bytes"
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
