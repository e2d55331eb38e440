package download

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/handiism/halftunes/internal/logging"
	"github.com/handiism/halftunes/internal/model"
	"github.com/handiism/halftunes/internal/transfer"
	"github.com/rs/zerolog"
)

// Store maps identifiers to local files. *store.Resolver implements it.
type Store interface {
	Resolve(id string) (string, error)
	Exists(id string) bool
	Place(id, src string) (string, error)
}

// Manager coordinates downloads keyed by source identifier.
//
// All state lives on the goroutine running Run: intents and queries are
// posted to it as closures, and engine events are read in the same loop.
// Intents return once the loop has accepted them, without waiting for any
// network or disk work.
//
// The callback is invoked on the loop goroutine. It must not call
// ActiveDownload, which would wait for the loop it is blocking.
type Manager struct {
	engine   transfer.Engine
	store    Store
	registry *Registry
	onEvent  func(Event)

	ops  chan func()
	done chan struct{}

	log zerolog.Logger
}

// NewManager creates a Manager. Run must be started before any intent is
// issued.
func NewManager(engine transfer.Engine, store Store, onEvent func(Event)) *Manager {
	return &Manager{
		engine:   engine,
		store:    store,
		registry: NewRegistry(),
		onEvent:  onEvent,
		ops:      make(chan func()),
		done:     make(chan struct{}),
		log:      logging.Get("download"),
	}
}

// Run processes intents and engine events until ctx is done. Intents issued
// after Run returned are dropped.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.done)

	events := m.engine.Events()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug().Int("active", m.registry.Len()).Msg("Manager stopped")
			return ctx.Err()
		case op := <-m.ops:
			op()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.handleEvent(ev)
		}
	}
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// StartDownload begins downloading id. It is a no-op when a record for id
// already exists, whatever its state.
func (m *Manager) StartDownload(id string) {
	m.post(func() {
		if _, ok := m.registry.Get(id); ok {
			return
		}
		if _, err := m.store.Resolve(id); err != nil {
			m.log.Warn().Err(err).Str("id", id).Msg("Refusing to download")
			m.notify(Event{Type: EventFailed, ID: id, Err: err})
			return
		}

		h := m.engine.Begin(id)
		m.registry.Put(model.NewDownload(id, h))
		m.log.Debug().Str("id", id).Str("transfer", h.ID).Msg("Download started")
	})
}

// PauseDownload pauses an in-flight download. The resume token arrives
// later and is kept on the record.
func (m *Manager) PauseDownload(id string) {
	m.post(func() {
		d, ok := m.registry.Get(id)
		if !ok || !d.IsDownloading() {
			return
		}
		m.engine.Pause(d.Handle)
		d.State = model.StatePaused
		m.log.Debug().Str("id", id).Msg("Download paused")
	})
}

// CancelDownload stops the download and forgets it. Events still in flight
// for the cancelled transfer are ignored.
func (m *Manager) CancelDownload(id string) {
	m.post(func() {
		m.cancel(id)
	})
}

// CancelAll cancels every registered download.
func (m *Manager) CancelAll() {
	m.post(func() {
		for _, id := range m.registry.IDs() {
			m.cancel(id)
		}
	})
}

// ResumeDownload continues a paused download, from its resume token when
// one was captured and from scratch otherwise.
func (m *Manager) ResumeDownload(id string) {
	m.post(func() {
		d, ok := m.registry.Get(id)
		if !ok || d.State != model.StatePaused {
			return
		}

		var h *transfer.Handle
		if d.ResumeData != nil {
			h = m.engine.BeginFromResumeData(d.ResumeData)
			if h.URL != id {
				m.log.Warn().Str("id", id).Str("url", h.URL).Msg("Resumed transfer does not match download, restarting")
				m.engine.Cancel(h)
				h = nil
			}
		} else {
			// Nothing to resume from: drop whatever the paused transfer kept.
			m.engine.Cancel(d.Handle)
		}
		if h == nil {
			h = m.engine.Begin(id)
			d.Progress = 0
			d.TotalBytes = -1
		}

		d.Handle = h
		d.State = model.StateDownloading
		d.ResumeData = nil
		m.log.Debug().Str("id", id).Str("transfer", h.ID).Msg("Download resumed")
	})
}

// ActiveDownload returns a snapshot of the record for id. It reports false
// when id is not downloading nor paused, including after Run returned.
func (m *Manager) ActiveDownload(id string) (Snapshot, bool) {
	var (
		snap Snapshot
		ok   bool
	)
	m.call(func() {
		var d *model.Download
		if d, ok = m.registry.Get(id); ok {
			snap = snapshotOf(d)
		}
	})
	return snap, ok
}

// ActiveIDs returns the identifiers of all registered downloads.
func (m *Manager) ActiveIDs() []string {
	var ids []string
	m.call(func() {
		ids = m.registry.IDs()
	})
	return ids
}

// IsDownloaded reports whether the local file for id exists. It reads the
// file system directly and can be called from any goroutine.
func (m *Manager) IsDownloaded(id string) bool {
	return m.store.Exists(id)
}

// LocalPath returns the path a completed download of id is stored at.
func (m *Manager) LocalPath(id string) (string, error) {
	return m.store.Resolve(id)
}

func (m *Manager) handleEvent(ev transfer.Event) {
	switch ev.Type {
	case transfer.EventProgress:
		m.handleProgress(ev)
	case transfer.EventResumeData:
		m.handleResumeData(ev)
	case transfer.EventFinished:
		if ev.Err == nil {
			m.handleSuccess(ev)
		} else {
			m.handleFailure(ev)
		}
	}
}

// match returns the record that owns ev's transfer. Records are found by
// the transfer's URL, and a record only accepts events from the transfer
// it currently tracks.
func (m *Manager) match(ev transfer.Event) (*model.Download, error) {
	if ev.Handle == nil {
		return nil, fmt.Errorf("%w: event without handle", ErrUnmatchedCallback)
	}
	d, ok := m.registry.Get(ev.Handle.URL)
	if !ok {
		return nil, fmt.Errorf("%w: no record for %q", ErrUnmatchedCallback, ev.Handle.URL)
	}
	if !d.Owns(ev.Handle) {
		return nil, fmt.Errorf("%w: stale transfer %s", ErrUnmatchedCallback, ev.Handle.ID)
	}
	return d, nil
}

func (m *Manager) handleProgress(ev transfer.Event) {
	d, err := m.match(ev)
	if err != nil {
		m.log.Debug().Err(err).Msg("Progress dropped")
		return
	}

	if ev.TotalBytesExpected <= 0 {
		m.notify(Event{Type: EventProgress, ID: d.ID, Progress: d.Progress, Indeterminate: true, TotalBytes: -1})
		return
	}

	p := float64(ev.TotalBytesWritten) / float64(ev.TotalBytesExpected)
	p = min(max(p, 0), 1)
	if p > d.Progress {
		d.Progress = p
	}
	d.TotalBytes = ev.TotalBytesExpected

	m.notify(Event{Type: EventProgress, ID: d.ID, Progress: d.Progress, TotalBytes: d.TotalBytes})
}

func (m *Manager) handleResumeData(ev transfer.Event) {
	d, err := m.match(ev)
	if err != nil {
		m.log.Debug().Err(err).Msg("Resume data dropped")
		return
	}
	if d.State != model.StatePaused {
		return
	}
	d.ResumeData = ev.ResumeData
	m.log.Debug().Str("id", d.ID).Bool("resumable", ev.ResumeData != nil).Msg("Resume data captured")
}

func (m *Manager) handleSuccess(ev transfer.Event) {
	d, err := m.match(ev)
	if err != nil {
		m.log.Debug().Err(err).Str("location", ev.Location).Msg("Discarding orphaned file")
		m.removeTemp(ev.Location)
		return
	}

	m.registry.Remove(d.ID)
	path, err := m.store.Place(d.ID, ev.Location)
	if err != nil {
		m.removeTemp(ev.Location)
		m.log.Error().Err(err).Str("id", d.ID).Msg("Failed to store download")
		m.notify(Event{Type: EventFailed, ID: d.ID, Err: fmt.Errorf("%w: %v", ErrStorage, err)})
		return
	}

	m.log.Info().Str("id", d.ID).Str("path", path).Msg("Download completed")
	m.notify(Event{Type: EventCompleted, ID: d.ID, Progress: 1, TotalBytes: d.TotalBytes, Path: path})
}

func (m *Manager) handleFailure(ev transfer.Event) {
	if errors.Is(ev.Err, transfer.ErrCancelled) {
		return
	}

	d, err := m.match(ev)
	if err != nil {
		m.log.Debug().Err(err).AnErr("cause", ev.Err).Msg("Failure dropped")
		return
	}

	if errors.Is(ev.Err, transfer.ErrResumeFailed) {
		d.Progress = 0
		d.TotalBytes = -1
		d.ResumeData = nil
		if !d.IsDownloading() {
			// Paused again before the failure surfaced: the next resume
			// starts over.
			return
		}
		d.Handle = m.engine.Begin(d.ID)
		m.log.Info().Err(ev.Err).Str("id", d.ID).Msg("Resume failed, restarting download")
		m.notify(Event{Type: EventProgress, ID: d.ID, Indeterminate: true, TotalBytes: -1})
		return
	}

	m.registry.Remove(d.ID)
	m.log.Error().Err(ev.Err).Str("id", d.ID).Msg("Download failed")
	m.notify(Event{Type: EventFailed, ID: d.ID, Err: ev.Err})
}

func (m *Manager) cancel(id string) {
	d, ok := m.registry.Get(id)
	if !ok {
		return
	}
	if d.Handle != nil {
		m.engine.Cancel(d.Handle)
	}
	m.registry.Remove(id)
	m.log.Debug().Str("id", id).Msg("Download cancelled")
}

func (m *Manager) notify(ev Event) {
	if m.onEvent != nil {
		m.onEvent(ev)
	}
}

// post hands fn to the loop. It reports false when Run has returned.
func (m *Manager) post(fn func()) bool {
	select {
	case m.ops <- fn:
		return true
	case <-m.done:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (m *Manager) call(fn func()) bool {
	finished := make(chan struct{})
	if !m.post(func() {
		fn()
		close(finished)
	}) {
		return false
	}
	<-finished
	return true
}

func snapshotOf(d *model.Download) Snapshot {
	return Snapshot{
		IsDownloading: d.IsDownloading(),
		Progress:      d.Progress,
		Indeterminate: d.TotalBytes <= 0,
		TotalBytes:    d.TotalBytes,
	}
}

func (m *Manager) removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		m.log.Warn().Err(err).Str("path", path).Msg("Failed to remove temporary file")
	}
}
