package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/handiism/halftunes/internal/model"
	"github.com/handiism/halftunes/internal/store"
	"github.com/handiism/halftunes/internal/transfer"
	"github.com/stretchr/testify/require"
)

// fakeEngine records calls. Its Events channel is nil: tests deliver events
// through dispatch so they are ordered with intents.
type fakeEngine struct {
	mu        sync.Mutex
	n         int
	begun     []string
	resumed   [][]byte
	paused    []*transfer.Handle
	cancelled []*transfer.Handle

	// resumeURL decides the URL of handles returned by BeginFromResumeData.
	resumeURL func(data []byte) string
}

func (f *fakeEngine) handle(url string) *transfer.Handle {
	f.n++
	return &transfer.Handle{ID: fmt.Sprintf("h%d", f.n), URL: url}
}

func (f *fakeEngine) Begin(url string) *transfer.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun = append(f.begun, url)
	return f.handle(url)
}

func (f *fakeEngine) BeginFromResumeData(data []byte) *transfer.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, data)
	return f.handle(f.resumeURL(data))
}

func (f *fakeEngine) Pause(h *transfer.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, h)
}

func (f *fakeEngine) Cancel(h *transfer.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, h)
}

func (f *fakeEngine) Events() <-chan transfer.Event {
	return nil
}

func (f *fakeEngine) calls() (begun []string, resumed [][]byte, paused, cancelled []*transfer.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.begun...),
		append([][]byte(nil), f.resumed...),
		append([]*transfer.Handle(nil), f.paused...),
		append([]*transfer.Handle(nil), f.cancelled...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) last(t *testing.T) Event {
	t.Helper()
	events := r.all()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

type fixture struct {
	m        *Manager
	engine   *fakeEngine
	resolver *store.Resolver
	events   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := &fakeEngine{resumeURL: func(data []byte) string { return string(data) }}
	resolver := store.NewResolver(filepath.Join(t.TempDir(), "Music"))
	events := &recorder{}
	m := NewManager(engine, resolver, events.record)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})

	return &fixture{m: m, engine: engine, resolver: resolver, events: events}
}

// dispatch delivers ev on the manager loop and waits for it to be handled.
func (f *fixture) dispatch(t *testing.T, ev transfer.Event) {
	t.Helper()
	require.True(t, f.m.call(func() { f.m.handleEvent(ev) }))
}

// record returns a copy of the record for id, read on the loop.
func (f *fixture) record(t *testing.T, id string) (model.Download, bool) {
	t.Helper()
	var (
		d  model.Download
		ok bool
	)
	require.True(t, f.m.call(func() {
		var p *model.Download
		if p, ok = f.m.registry.Get(id); ok {
			d = *p
		}
	}))
	return d, ok
}

func (f *fixture) handle(t *testing.T, id string) *transfer.Handle {
	t.Helper()
	d, ok := f.record(t, id)
	require.True(t, ok, "no record for %s", id)
	return d.Handle
}

func tempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transfer.part")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func progress(h *transfer.Handle, written, expected int64) transfer.Event {
	return transfer.Event{Type: transfer.EventProgress, Handle: h, TotalBytesWritten: written, TotalBytesExpected: expected}
}

func finished(h *transfer.Handle, location string, err error) transfer.Event {
	return transfer.Event{Type: transfer.EventFinished, Handle: h, Location: location, Err: err}
}

const trackA = "https://audio.example.com/previews/a.mp3"

func TestManager_StartDownload(t *testing.T) {
	f := newFixture(t)

	f.m.StartDownload(trackA)
	f.m.StartDownload(trackA)

	snap, ok := f.m.ActiveDownload(trackA)
	require.True(t, ok)
	require.True(t, snap.IsDownloading)
	require.Zero(t, snap.Progress)
	require.True(t, snap.Indeterminate)

	begun, _, _, _ := f.engine.calls()
	require.Equal(t, []string{trackA}, begun)
	require.Equal(t, []string{trackA}, f.m.ActiveIDs())
}

func TestManager_StartDownloadUnresolvable(t *testing.T) {
	f := newFixture(t)

	f.m.StartDownload("https://audio.example.com/")

	_, ok := f.m.ActiveDownload("https://audio.example.com/")
	require.False(t, ok)

	begun, _, _, _ := f.engine.calls()
	require.Empty(t, begun)

	ev := f.events.last(t)
	require.Equal(t, EventFailed, ev.Type)
	require.ErrorIs(t, ev.Err, store.ErrUnresolvableIdentifier)
}

func TestManager_IntentsWithoutRecordAreNoOps(t *testing.T) {
	f := newFixture(t)

	f.m.PauseDownload(trackA)
	f.m.ResumeDownload(trackA)
	f.m.CancelDownload(trackA)

	_, ok := f.m.ActiveDownload(trackA)
	require.False(t, ok)

	begun, resumed, paused, cancelled := f.engine.calls()
	require.Empty(t, begun)
	require.Empty(t, resumed)
	require.Empty(t, paused)
	require.Empty(t, cancelled)
	require.Empty(t, f.events.all())
}

func TestManager_PreviewScenario(t *testing.T) {
	f := newFixture(t)
	content := bytes.Repeat([]byte{0xAB}, 1_048_576)

	require.False(t, f.m.IsDownloaded(trackA))
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)

	f.dispatch(t, progress(h, 1000, 0))
	ev := f.events.last(t)
	require.Equal(t, EventProgress, ev.Type)
	require.True(t, ev.Indeterminate)
	snap, _ := f.m.ActiveDownload(trackA)
	require.Zero(t, snap.Progress)

	f.dispatch(t, progress(h, 524_288, 1_048_576))
	ev = f.events.last(t)
	require.False(t, ev.Indeterminate)
	require.InDelta(t, 0.5, ev.Progress, 1e-9)
	snap, _ = f.m.ActiveDownload(trackA)
	require.InDelta(t, 0.5, snap.Progress, 1e-9)
	require.Equal(t, int64(1_048_576), snap.TotalBytes)

	tmp := tempFile(t, content)
	f.dispatch(t, finished(h, tmp, nil))

	ev = f.events.last(t)
	require.Equal(t, EventCompleted, ev.Type)
	require.Equal(t, filepath.Join(f.resolver.Root(), "a.mp3"), ev.Path)

	_, ok := f.m.ActiveDownload(trackA)
	require.False(t, ok)
	require.True(t, f.m.IsDownloaded(trackA))

	got, err := os.ReadFile(ev.Path)
	require.NoError(t, err)
	require.Equal(t, content, got)
	require.NoFileExists(t, tmp)
}

func TestManager_CompletionReplacesExistingFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.resolver.Root(), 0755))
	dst := filepath.Join(f.resolver.Root(), "a.mp3")
	require.NoError(t, os.WriteFile(dst, bytes.Repeat([]byte("old"), 1000), 0644))

	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)
	f.dispatch(t, finished(h, tempFile(t, []byte("new content")), nil))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, []byte("new content"), got)
}

func TestManager_ProgressMonotonic(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)

	f.dispatch(t, progress(h, 60, 100))
	f.dispatch(t, progress(h, 30, 100))
	snap, _ := f.m.ActiveDownload(trackA)
	require.InDelta(t, 0.6, snap.Progress, 1e-9)

	f.dispatch(t, progress(h, 150, 100))
	snap, _ = f.m.ActiveDownload(trackA)
	require.Equal(t, 1.0, snap.Progress)

	var last float64
	for _, ev := range f.events.all() {
		require.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
	}
}

func TestManager_PauseAndResumeUsesToken(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)
	f.dispatch(t, progress(h, 40, 100))

	f.m.PauseDownload(trackA)
	snap, ok := f.m.ActiveDownload(trackA)
	require.True(t, ok)
	require.False(t, snap.IsDownloading)

	_, _, paused, _ := f.engine.calls()
	require.Equal(t, []*transfer.Handle{h}, paused)

	token := []byte(trackA)
	f.dispatch(t, transfer.Event{Type: transfer.EventResumeData, Handle: h, ResumeData: token})
	f.dispatch(t, finished(h, "", fmt.Errorf("%w: paused", transfer.ErrCancelled)))
	d, _ := f.record(t, trackA)
	require.Equal(t, token, d.ResumeData)
	require.Empty(t, f.events.all()[1:])

	// Pausing twice does nothing more.
	f.m.PauseDownload(trackA)
	_, _, paused, _ = f.engine.calls()
	require.Len(t, paused, 1)

	f.m.ResumeDownload(trackA)
	d, ok = f.record(t, trackA)
	require.True(t, ok)
	require.True(t, d.IsDownloading())
	require.Nil(t, d.ResumeData)
	require.NotEqual(t, h.ID, d.Handle.ID)
	require.InDelta(t, 0.4, d.Progress, 1e-9)

	begun, resumed, _, _ := f.engine.calls()
	require.Equal(t, [][]byte{token}, resumed)
	require.Equal(t, []string{trackA}, begun)

	// Resuming a downloading record does nothing.
	f.m.ResumeDownload(trackA)
	_, resumed, _, _ = f.engine.calls()
	require.Len(t, resumed, 1)
}

func TestManager_LateResumeDataAfterResume(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)

	f.m.PauseDownload(trackA)
	f.m.ResumeDownload(trackA)
	d, ok := f.record(t, trackA)
	require.True(t, ok)
	require.True(t, d.IsDownloading())
	h2 := d.Handle
	require.NotEqual(t, h.ID, h2.ID)

	// The token of the first transfer shows up once it has been replaced.
	f.dispatch(t, transfer.Event{Type: transfer.EventResumeData, Handle: h, ResumeData: []byte(trackA)})
	f.dispatch(t, finished(h, "", fmt.Errorf("%w: paused", transfer.ErrCancelled)))

	// A token from the current handle is ignored while downloading.
	f.dispatch(t, transfer.Event{Type: transfer.EventResumeData, Handle: h2, ResumeData: []byte(trackA)})

	d, ok = f.record(t, trackA)
	require.True(t, ok)
	require.True(t, d.IsDownloading())
	require.Nil(t, d.ResumeData)
	require.Equal(t, h2.ID, d.Handle.ID)
	require.Empty(t, f.events.all())

	_, resumed, _, _ := f.engine.calls()
	require.Empty(t, resumed)
}

func TestManager_ResumeWithoutTokenRestarts(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)
	f.dispatch(t, progress(h, 40, 100))

	f.m.PauseDownload(trackA)
	f.dispatch(t, transfer.Event{Type: transfer.EventResumeData, Handle: h})
	f.m.ResumeDownload(trackA)

	d, ok := f.record(t, trackA)
	require.True(t, ok)
	require.True(t, d.IsDownloading())
	require.Zero(t, d.Progress)

	begun, resumed, _, cancelled := f.engine.calls()
	require.Equal(t, []string{trackA, trackA}, begun)
	require.Empty(t, resumed)
	require.Equal(t, []*transfer.Handle{h}, cancelled)

	// Late events of the paused transfer no longer count.
	f.dispatch(t, progress(h, 90, 100))
	d, _ = f.record(t, trackA)
	require.Zero(t, d.Progress)
}

func TestManager_ResumeHandleForOtherURL(t *testing.T) {
	f := newFixture(t)
	f.engine.resumeURL = func([]byte) string { return "" }

	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)
	f.m.PauseDownload(trackA)
	f.dispatch(t, transfer.Event{Type: transfer.EventResumeData, Handle: h, ResumeData: []byte("garbage")})
	f.m.ResumeDownload(trackA)

	d, ok := f.record(t, trackA)
	require.True(t, ok)
	require.Equal(t, trackA, d.Handle.URL)

	begun, resumed, _, cancelled := f.engine.calls()
	require.Len(t, resumed, 1)
	require.Equal(t, []string{trackA, trackA}, begun)
	require.Len(t, cancelled, 1)
	require.Empty(t, cancelled[0].URL)
}

func TestManager_CancelThenLateCompletion(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)

	f.m.CancelDownload(trackA)
	_, ok := f.m.ActiveDownload(trackA)
	require.False(t, ok)

	_, _, _, cancelled := f.engine.calls()
	require.Equal(t, []*transfer.Handle{h}, cancelled)

	tmp := tempFile(t, []byte("late"))
	f.dispatch(t, progress(h, 10, 100))
	f.dispatch(t, finished(h, tmp, nil))

	_, ok = f.m.ActiveDownload(trackA)
	require.False(t, ok)
	require.False(t, f.m.IsDownloaded(trackA))
	require.NoFileExists(t, tmp)
	require.Empty(t, f.events.all())
}

func TestManager_CancelPaused(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)
	f.m.PauseDownload(trackA)

	f.m.CancelDownload(trackA)
	_, ok := f.m.ActiveDownload(trackA)
	require.False(t, ok)

	// The token arriving after the cancel is dropped.
	f.dispatch(t, transfer.Event{Type: transfer.EventResumeData, Handle: h, ResumeData: []byte(trackA)})
	_, ok = f.record(t, trackA)
	require.False(t, ok)
}

func TestManager_CancelAll(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	f.m.StartDownload("https://audio.example.com/previews/b.mp3")

	f.m.CancelAll()
	require.Empty(t, f.m.ActiveIDs())

	_, _, _, cancelled := f.engine.calls()
	require.Len(t, cancelled, 2)
}

func TestManager_NetworkFailure(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)

	f.dispatch(t, finished(h, "", fmt.Errorf("%w: connection reset", transfer.ErrNetwork)))

	_, ok := f.m.ActiveDownload(trackA)
	require.False(t, ok)
	ev := f.events.last(t)
	require.Equal(t, EventFailed, ev.Type)
	require.Equal(t, trackA, ev.ID)
	require.ErrorIs(t, ev.Err, transfer.ErrNetwork)

	// The identifier can be downloaded again.
	f.m.StartDownload(trackA)
	_, ok = f.m.ActiveDownload(trackA)
	require.True(t, ok)
}

func TestManager_CancelledFailureIsSilent(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)

	f.dispatch(t, finished(h, "", transfer.ErrCancelled))

	require.Empty(t, f.events.all())
	_, ok := f.m.ActiveDownload(trackA)
	require.True(t, ok)
}

func TestManager_ResumeFailedRestarts(t *testing.T) {
	f := newFixture(t)
	f.m.StartDownload(trackA)
	h := f.handle(t, trackA)
	f.dispatch(t, progress(h, 50, 100))
	f.m.PauseDownload(trackA)
	f.dispatch(t, transfer.Event{Type: transfer.EventResumeData, Handle: h, ResumeData: []byte(trackA)})
	f.m.ResumeDownload(trackA)
	resumedHandle := f.handle(t, trackA)

	f.dispatch(t, finished(resumedHandle, "", fmt.Errorf("%w: partial file missing", transfer.ErrResumeFailed)))

	d, ok := f.record(t, trackA)
	require.True(t, ok)
	require.True(t, d.IsDownloading())
	require.Zero(t, d.Progress)
	require.NotEqual(t, resumedHandle.ID, d.Handle.ID)

	begun, _, _, _ := f.engine.calls()
	require.Equal(t, []string{trackA, trackA}, begun)
	for _, ev := range f.events.all() {
		require.NotEqual(t, EventFailed, ev.Type)
	}
}

func TestManager_StorageFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, nil, 0644))

	engine := &fakeEngine{}
	events := &recorder{}
	m := NewManager(engine, store.NewResolver(root), events.record)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-m.Done()
	}()
	go func() { _ = m.Run(ctx) }()

	m.StartDownload(trackA)
	var h *transfer.Handle
	m.call(func() {
		d, _ := m.registry.Get(trackA)
		h = d.Handle
	})
	tmp := tempFile(t, []byte("data"))
	m.call(func() { m.handleEvent(finished(h, tmp, nil)) })

	evs := events.all()
	require.Len(t, evs, 1)
	require.Equal(t, EventFailed, evs[0].Type)
	require.ErrorIs(t, evs[0].Err, ErrStorage)
	require.NoFileExists(t, tmp)

	_, ok := m.ActiveDownload(trackA)
	require.False(t, ok)
}

func TestManager_SameFileNameCollision(t *testing.T) {
	f := newFixture(t)
	other := "https://cdn.example.org/other/a.mp3"

	f.m.StartDownload(trackA)
	f.dispatch(t, finished(f.handle(t, trackA), tempFile(t, []byte("a")), nil))

	require.True(t, f.m.IsDownloaded(trackA))
	require.True(t, f.m.IsDownloaded(other))

	p1, err := f.m.LocalPath(trackA)
	require.NoError(t, err)
	p2, err := f.m.LocalPath(other)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestManager_IntentsAfterRunReturns(t *testing.T) {
	m := NewManager(&fakeEngine{}, store.NewResolver(t.TempDir()), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Run(ctx), context.Canceled)

	m.StartDownload(trackA)
	_, ok := m.ActiveDownload(trackA)
	require.False(t, ok)
	require.Nil(t, m.ActiveIDs())
}

func TestManager_WithHTTPEngine(t *testing.T) {
	data := bytes.Repeat([]byte("halftunes"), 20_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "a.mp3", time.Time{}, bytes.NewReader(data))
	}))
	defer srv.Close()

	engine, err := transfer.NewHTTPEngine(transfer.Config{TempDir: t.TempDir(), ProgressInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = engine.Shutdown(context.Background()) }()

	resolver := store.NewResolver(t.TempDir())
	done := make(chan Event, 1)
	m := NewManager(engine, resolver, func(ev Event) {
		if ev.Type != EventProgress {
			done <- ev
		}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-m.Done()
	}()
	go func() { _ = m.Run(ctx) }()

	id := srv.URL + "/previews/a.mp3"
	m.StartDownload(id)

	select {
	case ev := <-done:
		require.Equal(t, EventCompleted, ev.Type, "unexpected error: %v", ev.Err)
		got, err := os.ReadFile(ev.Path)
		require.NoError(t, err)
		require.Equal(t, data, got)
	case <-time.After(10 * time.Second):
		t.Fatal("download did not complete")
	}

	require.True(t, m.IsDownloaded(id))
	_, ok := m.ActiveDownload(id)
	require.False(t, ok)
}

func TestEventType_String(t *testing.T) {
	require.Equal(t, "progress", EventProgress.String())
	require.Equal(t, "completed", EventCompleted.String())
	require.Equal(t, "failed", EventFailed.String())
	require.Equal(t, "unknown", EventType(9).String())
	require.True(t, errors.Is(fmt.Errorf("%w: x", ErrStorage), ErrStorage))
}
