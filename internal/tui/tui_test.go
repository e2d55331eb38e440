package tui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/handiism/halftunes/internal/download"
	"github.com/handiism/halftunes/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeDownloads struct {
	mu         sync.Mutex
	calls      []string
	active     map[string]download.Snapshot
	downloaded map[string]bool
}

func newFakeDownloads() *fakeDownloads {
	return &fakeDownloads{active: map[string]download.Snapshot{}, downloaded: map[string]bool{}}
}

func (f *fakeDownloads) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDownloads) StartDownload(id string)  { f.record("start " + id) }
func (f *fakeDownloads) PauseDownload(id string)  { f.record("pause " + id) }
func (f *fakeDownloads) ResumeDownload(id string) { f.record("resume " + id) }
func (f *fakeDownloads) CancelDownload(id string) { f.record("cancel " + id) }

func (f *fakeDownloads) ActiveDownload(id string) (download.Snapshot, bool) {
	s, ok := f.active[id]
	return s, ok
}

func (f *fakeDownloads) IsDownloaded(id string) bool {
	return f.downloaded[id]
}

func (f *fakeDownloads) LocalPath(id string) (string, error) {
	if id == "" {
		return "", errors.New("unresolvable")
	}
	return "/music/" + id[strings.LastIndex(id, "/")+1:], nil
}

var testTracks = []*model.Track{
	{Name: "One", Artist: "Band", PreviewURL: "https://x.com/one.mp3"},
	{Name: "Two", Artist: "Band", PreviewURL: "https://x.com/two.mp3"},
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func TestModel_RefreshAndRender(t *testing.T) {
	fake := newFakeDownloads()
	fake.active["https://x.com/one.mp3"] = download.Snapshot{IsDownloading: true, Progress: 0.5, TotalBytes: 1_048_576}
	fake.downloaded["https://x.com/two.mp3"] = true

	m := NewModel("Road trip", testTracks, fake)
	msg := m.refresh()()
	m, _ = update(t, m, msg)

	view := m.View()
	require.Contains(t, view, "Road trip")
	require.Contains(t, view, "Band - One")
	require.Contains(t, view, "Downloading...")
	require.Contains(t, view, "50.0% of 1.0 MiB")
	require.Contains(t, view, "downloaded")
}

func TestModel_StartPauseResumeCancel(t *testing.T) {
	fake := newFakeDownloads()
	m := NewModel("", testTracks, fake)

	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	require.Nil(t, cmd())
	require.Contains(t, m.View(), "Downloading...")

	m, cmd = update(t, m, key("p"))
	cmd()
	require.Contains(t, m.View(), "Paused")

	m, cmd = update(t, m, key("p"))
	cmd()
	require.Contains(t, m.View(), "Downloading...")

	m, cmd = update(t, m, key("c"))
	cmd()
	require.NotContains(t, m.View(), "Downloading...")

	require.Equal(t, []string{
		"start https://x.com/one.mp3",
		"pause https://x.com/one.mp3",
		"resume https://x.com/one.mp3",
		"cancel https://x.com/one.mp3",
	}, fake.calls)
}

func TestModel_IgnoresControlsWithoutDownload(t *testing.T) {
	fake := newFakeDownloads()
	m := NewModel("", testTracks, fake)

	_, cmd := update(t, m, key("p"))
	require.Nil(t, cmd)
	_, cmd = update(t, m, key("c"))
	require.Nil(t, cmd)
	require.Empty(t, fake.calls)
}

func TestModel_RevealDownloaded(t *testing.T) {
	fake := newFakeDownloads()
	fake.downloaded["https://x.com/two.mp3"] = true
	m := NewModel("", testTracks, fake)
	m, _ = update(t, m, m.refresh()())

	m, _ = update(t, m, key("down"))
	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)

	msg := cmd()
	require.Equal(t, RevealMsg{ID: "https://x.com/two.mp3", Path: "/music/two.mp3"}, msg)
	m, _ = update(t, m, msg)
	require.Contains(t, m.View(), "Saved at /music/two.mp3")
	require.Empty(t, fake.calls)
}

func TestModel_ApplyEvents(t *testing.T) {
	fake := newFakeDownloads()
	m := NewModel("", testTracks, fake)
	m, _ = update(t, m, key("enter"))

	m, _ = update(t, m, EventMsg{Event: download.Event{Type: download.EventProgress, ID: "https://x.com/one.mp3", Progress: 0.25, TotalBytes: 2048}})
	require.Contains(t, m.View(), "25.0% of 2.0 KiB")

	m, _ = update(t, m, EventMsg{Event: download.Event{Type: download.EventCompleted, ID: "https://x.com/one.mp3", Path: "/music/one.mp3"}})
	view := m.View()
	require.Contains(t, view, "Downloaded Band - One")
	require.NotContains(t, view, "Downloading...")

	m, _ = update(t, m, EventMsg{Event: download.Event{Type: download.EventFailed, ID: "https://x.com/two.mp3", Err: errors.New("network error: boom")}})
	require.Contains(t, m.View(), "Band - Two: network error: boom")
}

func TestProgressLabel(t *testing.T) {
	require.Equal(t, "0.0%", progressLabel(download.Snapshot{Indeterminate: true, TotalBytes: -1}))
	require.Equal(t, "50.0% of 1.0 MiB", progressLabel(download.Snapshot{Progress: 0.5, TotalBytes: 1_048_576}))
	require.Equal(t, "Paused", stateLabel(download.Snapshot{}))
	require.Equal(t, "Downloading...", stateLabel(download.Snapshot{IsDownloading: true}))
}

func TestModel_Quit(t *testing.T) {
	m := NewModel("", nil, newFakeDownloads())
	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())
	require.Contains(t, m.View(), "No tracks")
}
