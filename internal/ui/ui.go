package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/d2t/internal/formatter"
	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/services"
	"github.com/desertthunder/d2t/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	FolderListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

// maxUnmatchedShown caps the unmatched tracks listed in the result view.
const maxUnmatchedShown = 10

// Settings are the run options the TUI starts from.
type Settings struct {
	PlaylistName string      // playlist for sync mode
	BaseName     string      // prefix for style-sync playlists
	Mode         models.Mode // initial mode
	Limit        int
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	catalog      services.Catalog
	engine       tasks.SyncEngine
	settings     Settings
	width        int
	height       int
	folderList   list.Model
	folders      []models.Folder
	folder       *models.Folder
	mode         models.Mode
	dryRun       bool
	progressChan chan tasks.ProgressUpdate
	done         chan syncComplete
	progress     tasks.ProgressUpdate
	report       *models.SyncReport
	err          error
	spinner      spinner.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, catalog services.Catalog, engine tasks.SyncEngine, settings Settings) *Model {
	mode := settings.Mode
	if mode == "" {
		mode = models.ModeStyleSync
	}
	return &Model{
		ctx:      ctx,
		view:     FolderListView,
		catalog:  catalog,
		engine:   engine,
		settings: settings,
		mode:     mode,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by fetching the collection folders.
func (m *Model) Init() tea.Cmd {
	return m.fetchFolders()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.folders != nil {
			m.folderList.SetSize(max(msg.Width-4, 0), max(msg.Height-8, 0))
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case FolderListView:
			return m.handleFolderKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgFoldersFetched:
		data := msg.data.(foldersFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.folders = data.folders
		items := make([]list.Item, len(data.folders))
		for i, f := range data.folders {
			items[i] = folderItem{folder: f}
		}
		m.folderList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.folderList.Title = "Discogs Collection Folders"
		m.folderList.SetSize(max(m.width-4, 0), max(m.height-8, 0))
		return m, nil

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncComplete)
		m.report = data.report
		m.err = data.err
		m.progressChan = nil
		m.done = nil
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case FolderListView:
		return m.renderFolders()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleFolderKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit) && m.folderList.FilterState() != list.Filtering:
		return m, tea.Quit
	case m.err != nil || m.folders == nil:
		return m, nil
	case key.Matches(msg, m.keys.enter) && m.folderList.FilterState() != list.Filtering:
		if item, ok := m.folderList.SelectedItem().(folderItem); ok {
			f := item.folder
			m.folder = &f
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.folderList, cmd = m.folderList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = FolderListView
		return m, nil
	case key.Matches(msg, m.keys.mode):
		if m.mode == models.ModeSync {
			m.mode = models.ModeStyleSync
		} else {
			m.mode = models.ModeSync
		}
		return m, nil
	case key.Matches(msg, m.keys.preview):
		return m, m.startSync(true)
	case key.Matches(msg, m.keys.apply):
		return m, m.startSync(false)
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.apply) && m.report != nil && m.report.DryRun && m.err == nil:
		return m, m.startSync(false)
	case key.Matches(msg, m.keys.restart):
		m.view = FolderListView
		m.folder = nil
		m.report = nil
		m.err = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != FolderListView || m.folders == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.folderList, cmd = m.folderList.Update(msg)
	return m, cmd
}

// Options returns the run options for the selected folder and mode.
func (m *Model) Options(dryRun bool) tasks.RunOptions {
	opts := tasks.RunOptions{Mode: m.mode, Limit: m.settings.Limit, DryRun: dryRun}
	if m.folder != nil {
		opts.FolderID = m.folder.ID
	}
	if m.mode == models.ModeSync {
		opts.Name = m.settings.PlaylistName
	} else {
		opts.Name = m.settings.BaseName
	}
	return opts
}

func (m *Model) fetchFolders() tea.Cmd {
	return func() tea.Msg {
		folders, err := m.catalog.Folders(m.ctx)
		return foldersFetchedMsg(folders, err)
	}
}

func (m *Model) startSync(dryRun bool) tea.Cmd {
	opts := m.Options(dryRun)
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan syncComplete, 1)

	m.progressChan = progress
	m.done = done
	m.progress = tasks.ProgressUpdate{}
	m.dryRun = dryRun
	m.report = nil
	m.err = nil
	m.view = SyncView

	go func() {
		report, err := m.engine.Run(m.ctx, opts, progress)
		done <- syncComplete{report, err}
		close(progress)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		if progress == nil {
			return syncCompleteMsg(m.report, m.err)
		}

		update, ok := <-progress
		if !ok {
			result := <-done
			return syncCompleteMsg(result.report, result.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderFolders() string {
	if m.folders == nil {
		return fmt.Sprintf("%s Loading collection folders...", m.spinner.View())
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.folderList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	opts := m.Options(false)
	title := styles.title.Render(fmt.Sprintf("Sync '%s' to Tidal?", m.folder.Name))

	var b strings.Builder
	fmt.Fprintf(&b, "\nFolder: %s (%d releases)\n", m.folder.Name, m.folder.Count)
	fmt.Fprintf(&b, "Mode: %s\n", styles.accent.Render(string(opts.Mode)))
	if opts.Mode == models.ModeSync {
		fmt.Fprintf(&b, "Playlist: %s\n", opts.Name)
	} else {
		fmt.Fprintf(&b, "Playlists: %s\n", tasks.StylePartitioner{BaseName: opts.Name}.PlaylistName("<style>"))
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, "Track limit: %d\n", opts.Limit)
	}

	helpKeys := []key.Binding{m.keys.apply, m.keys.preview, m.keys.mode, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderSync() string {
	heading := "Syncing"
	if m.dryRun {
		heading = "Previewing"
	}
	title := styles.title.Render(heading)

	var phase string
	switch m.progress.Phase {
	case tasks.FetchCatalog:
		phase = "Fetching collection..."
	case tasks.ResolveTracks:
		phase = fmt.Sprintf("Searching Tidal (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Partition:
		phase = "Grouping tracks..."
	case tasks.Reconcile:
		phase = fmt.Sprintf("Updating playlists (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Complete:
		phase = "Finishing..."
	}

	return fmt.Sprintf("%s\n\n%s %s\n%s", title, m.spinner.View(), phase, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress r to restart, q to quit", m.err))
	}

	if m.report == nil {
		return styles.err.Render("No result available\n\nPress r to restart, q to quit")
	}

	var title string
	switch {
	case m.report.DryRun:
		title = styles.accent.Render("Preview (nothing was changed)")
	case m.report.HasFailures():
		title = styles.warn.Render("⚠ Sync finished with failures")
	default:
		title = styles.ok.Render("✓ Sync complete!")
	}

	var b strings.Builder
	b.WriteString(formatter.SummaryTable(m.report))
	b.WriteString("\n")
	b.WriteString(formatter.OutcomesTable(m.report))

	if n := len(m.report.Unmatched); n > 0 {
		b.WriteString("\n\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("No Tidal match for %d tracks:", n)))
		for i, u := range m.report.Unmatched {
			if i == maxUnmatchedShown {
				fmt.Fprintf(&b, "\n  … and %d more", n-maxUnmatchedShown)
				break
			}
			fmt.Fprintf(&b, "\n  • %s - %s", u.Artist, u.Title)
		}
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	if m.report.DryRun {
		helpKeys = append([]key.Binding{m.keys.apply}, helpKeys...)
	}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, b.String(), helpView)
}
