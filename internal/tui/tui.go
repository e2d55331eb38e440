// Package tui provides a Bubble Tea terminal user interface for halftunes.
//
// The UI lists tracks with a download control per row. Rows of tracks being
// downloaded show their state, a progress bar and the received fraction;
// rows of tracks already on disk show where the file is.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/handiism/halftunes/internal/app"
	"github.com/handiism/halftunes/internal/config"
	"github.com/handiism/halftunes/internal/download"
	"github.com/handiism/halftunes/internal/logging"
	"github.com/handiism/halftunes/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8B500"))
)

// Downloads is the part of the download manager the UI drives.
type Downloads interface {
	StartDownload(id string)
	PauseDownload(id string)
	ResumeDownload(id string)
	CancelDownload(id string)
	ActiveDownload(id string) (download.Snapshot, bool)
	IsDownloaded(id string) bool
	LocalPath(id string) (string, error)
}

// Level is the severity of a status line.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelSuccess
)

// LogEntry represents a status line in the UI.
type LogEntry struct {
	Message string
	Level   Level
}

// row is the cached state of one track.
type row struct {
	active     bool
	snapshot   download.Snapshot
	downloaded bool
}

// Model is the Bubble Tea model for the TUI.
//
// Every call into Downloads happens inside a tea.Cmd: the manager delivers
// its events through Program.Send and would otherwise wait on Update while
// Update waits on it.
type Model struct {
	title     string
	tracks    []*model.Track
	rows      map[string]row
	cursor    int
	downloads Downloads

	spinner  spinner.Model
	progress progress.Model
	logs     []LogEntry

	width  int
	height int
}

// NewModel creates a new TUI model over tracks.
func NewModel(title string, tracks []*model.Track, downloads Downloads) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	prog.Width = 30

	return Model{
		title:     title,
		tracks:    tracks,
		rows:      make(map[string]row, len(tracks)),
		downloads: downloads,
		spinner:   sp,
		progress:  prog,
	}
}

// Message types
type (
	// EventMsg carries a download event from the manager.
	EventMsg struct {
		Event download.Event
	}

	// RevealMsg carries the local path of a downloaded track.
	RevealMsg struct {
		ID   string
		Path string
		Err  error
	}

	// TickMsg is for periodic row refreshes.
	TickMsg struct{}

	rowsMsg struct {
		rows map[string]row
	}
)

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width/3, 10), 40)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case TickMsg:
		cmds = append(cmds, m.refresh())

	case rowsMsg:
		m.rows = msg.rows
		cmds = append(cmds, tickRows())

	case EventMsg:
		m.applyEvent(msg.Event)

	case RevealMsg:
		if msg.Err != nil {
			m.log(LevelError, fmt.Sprintf("No local file: %v", msg.Err))
		} else {
			m.log(LevelInfo, "Saved at "+msg.Path)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.tracks)-1 {
			m.cursor++
		}
	}

	track := m.selected()
	if track == nil {
		return m, nil
	}
	id := track.ID()
	r := m.rows[id]

	switch msg.String() {
	case "enter", "d":
		switch {
		case r.active:
		case r.downloaded:
			return m, m.reveal(id)
		default:
			m.rows[id] = row{active: true, snapshot: download.Snapshot{IsDownloading: true, Indeterminate: true, TotalBytes: -1}}
			m.log(LevelInfo, "Downloading "+track.DisplayTitle())
			return m, m.intent(func() { m.downloads.StartDownload(id) })
		}

	case "p", " ":
		if !r.active {
			return m, nil
		}
		r.snapshot.IsDownloading = !r.snapshot.IsDownloading
		m.rows[id] = r
		if r.snapshot.IsDownloading {
			return m, m.intent(func() { m.downloads.ResumeDownload(id) })
		}
		return m, m.intent(func() { m.downloads.PauseDownload(id) })

	case "c", "x":
		if !r.active {
			return m, nil
		}
		delete(m.rows, id)
		m.log(LevelWarning, "Cancelled "+track.DisplayTitle())
		return m, m.intent(func() { m.downloads.CancelDownload(id) })
	}

	return m, nil
}

func (m *Model) applyEvent(ev download.Event) {
	name := ev.ID
	if t := m.track(ev.ID); t != nil {
		name = t.DisplayTitle()
	}

	switch ev.Type {
	case download.EventProgress:
		r := m.rows[ev.ID]
		if !r.active {
			return
		}
		r.snapshot.Progress = ev.Progress
		r.snapshot.Indeterminate = ev.Indeterminate
		if !ev.Indeterminate {
			r.snapshot.TotalBytes = ev.TotalBytes
		}
		m.rows[ev.ID] = r
	case download.EventCompleted:
		m.rows[ev.ID] = row{downloaded: true}
		m.log(LevelSuccess, "Downloaded "+name)
	case download.EventFailed:
		delete(m.rows, ev.ID)
		m.log(LevelError, fmt.Sprintf("%s: %v", name, ev.Err))
	}
}

// refresh reads the state of every track.
func (m Model) refresh() tea.Cmd {
	tracks := m.tracks
	downloads := m.downloads
	return func() tea.Msg {
		rows := make(map[string]row, len(tracks))
		for _, t := range tracks {
			id := t.ID()
			snap, active := downloads.ActiveDownload(id)
			rows[id] = row{active: active, snapshot: snap, downloaded: !active && downloads.IsDownloaded(id)}
		}
		return rowsMsg{rows: rows}
	}
}

func (m Model) reveal(id string) tea.Cmd {
	downloads := m.downloads
	return func() tea.Msg {
		path, err := downloads.LocalPath(id)
		return RevealMsg{ID: id, Path: path, Err: err}
	}
}

func (m Model) intent(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func tickRows() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) selected() *model.Track {
	if m.cursor < 0 || m.cursor >= len(m.tracks) {
		return nil
	}
	return m.tracks[m.cursor]
}

func (m Model) track(id string) *model.Track {
	for _, t := range m.tracks {
		if t.ID() == id {
			return t
		}
	}
	return nil
}

func (m *Model) log(level Level, message string) {
	m.logs = append(m.logs, LogEntry{Message: message, Level: level})
	// Keep only last 5 logs
	if len(m.logs) > 5 {
		m.logs = m.logs[len(m.logs)-5:]
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("♪ HalfTunes"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.title))
	b.WriteString("\n\n")

	if len(m.tracks) == 0 {
		b.WriteString(warningStyle.Render("No tracks to show."))
		b.WriteString("\n")
	}
	for i, t := range m.tracks {
		b.WriteString(m.renderRow(i, t))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderLogs())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func (m Model) renderRow(i int, t *model.Track) string {
	var b strings.Builder

	cursor := "  "
	name := t.DisplayTitle()
	if i == m.cursor {
		cursor = "› "
		name = selectedStyle.Render(name)
	}
	b.WriteString(cursor + name)

	r := m.rows[t.ID()]
	switch {
	case r.active:
		b.WriteString("\n    ")
		if r.snapshot.IsDownloading && r.snapshot.Indeterminate {
			b.WriteString(m.spinner.View() + " ")
		}
		b.WriteString(infoStyle.Render(stateLabel(r.snapshot)))
		b.WriteString("  ")
		b.WriteString(m.progress.ViewAs(r.snapshot.Progress))
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(progressLabel(r.snapshot)))
	case r.downloaded:
		b.WriteString("  ")
		b.WriteString(successStyle.Render("✓ downloaded"))
	}

	return b.String()
}

// stateLabel is "Downloading..." or "Paused".
func stateLabel(s download.Snapshot) string {
	if s.IsDownloading {
		return model.StateDownloading.String()
	}
	return model.StatePaused.String()
}

// progressLabel renders "42.0% of 1.0 MiB", or the percentage alone when
// the size is unknown.
func progressLabel(s download.Snapshot) string {
	if s.Indeterminate || s.TotalBytes <= 0 {
		return fmt.Sprintf("%.1f%%", s.Progress*100)
	}
	return fmt.Sprintf("%.1f%% of %s", s.Progress*100, humanize.IBytes(uint64(s.TotalBytes)))
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case LevelError:
			style = errorStyle
			prefix = "✗"
		case LevelWarning:
			style = warningStyle
			prefix = "!"
		case LevelSuccess:
			style = successStyle
			prefix = "✓"
		default:
			style = infoStyle
			prefix = "›"
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	var r row
	if t := m.selected(); t != nil {
		r = m.rows[t.ID()]
	}
	switch {
	case r.active && r.snapshot.IsDownloading:
		return "↑/↓: select • p: pause • c: cancel • q: quit"
	case r.active:
		return "↑/↓: select • p: resume • c: cancel • q: quit"
	case r.downloaded:
		return "↑/↓: select • enter: show file • q: quit"
	}
	return "↑/↓: select • enter: download • q: quit"
}

// Run starts the TUI application over tracks. Logs go to a file in the
// temp directory so they do not tear the screen.
func Run(settings *config.Settings, title string, tracks []*model.Track) error {
	logFile, err := os.Create(filepath.Join(os.TempDir(), "halftunes-tui.log"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.SetOutput(logFile)

	var program *tea.Program
	a, err := app.New(settings, func(ev download.Event) {
		program.Send(EventMsg{Event: ev})
	})
	if err != nil {
		return err
	}

	program = tea.NewProgram(NewModel(title, tracks, a.Manager), tea.WithAltScreen())
	a.Start(context.Background())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	}()

	_, err = program.Run()
	return err
}
