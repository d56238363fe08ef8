package tui

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/ajramos/leavebehind/internal/config"
	"github.com/ajramos/leavebehind/internal/gesture"
	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/render"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

// StateStore keeps the pending undo groups across restarts
type StateStore interface {
	Save(ctx context.Context, data []byte) error
	Take(ctx context.Context) ([]byte, bool, error)
}

// ConfigSource is a reloadable configuration, e.g. *config.Manager
type ConfigSource interface {
	LoadFromFile(path string) error
	Path() string
	AddWatcher(watcher func(*config.Config))
}

// App encapsulates the terminal UI around one list coordinator
type App struct {
	*tview.Application
	Pages  *tview.Pages
	Config *config.Config
	Keys   config.KeyBindings

	mailbox     services.Mailbox
	coordinator *services.ListCoordinator
	recent      *services.RecentFolderService
	state       StateStore
	configSrc   ConfigSource
	renderer    *render.TextRenderer
	recognizer  *gesture.Recognizer
	surface     *tableSurface

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	headers  map[string]services.Header
	selected map[string]bool
	rowIDs   []string
	folders  []recent.Entry

	table        *tview.Table
	status       *tview.TextView
	errorHandler *ErrorHandler
	unsubscribe  func()

	screenWidth int
	uiReady     bool

	// Debug logging
	logger  *log.Logger
	logFile *os.File
}

// NewApp creates the TUI over mailbox. recentSvc and state may be nil.
func NewApp(cfg *config.Config, mailbox services.Mailbox, recentSvc *services.RecentFolderService, state StateStore) *App {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Application: tview.NewApplication(),
		Pages:       tview.NewPages(),
		Config:      cfg,
		Keys:        cfg.Keys,
		mailbox:     mailbox,
		recent:      recentSvc,
		state:       state,
		renderer:    render.NewTextRenderer(),
		ctx:         ctx,
		cancel:      cancel,
		headers:     make(map[string]services.Header),
		selected:    make(map[string]bool),
		screenWidth: 80,
		logger:      log.New(os.Stdout, "[leavebehind] ", log.LstdFlags|log.Lmicroseconds),
	}

	// Initialize file logger (logging.go)
	app.initLogger()

	app.renderer.SetUndoKey(cfg.Keys.Undo)
	app.surface = newTableSurface(app)

	opts := []services.Option{
		services.WithUndoWindow(cfg.GetUndoWindow()),
		services.WithDispatcher(app.dispatch),
		services.WithSingleLeaveBehind(cfg.SingleLeaveBehind),
		services.WithFolder(cfg.Folder),
	}
	if recentSvc != nil {
		opts = append(opts, services.WithRecent(recentSvc))
		recentSvc.SetLogger(app.logger)
	}
	app.coordinator = services.NewListCoordinator(mailbox, app.surface, opts...)
	app.coordinator.SetLogger(app.logger)
	app.recognizer = gesture.NewRecognizer(cfg.Gesture, nil)

	app.initViews()
	app.bindKeys()
	app.initGestures()
	app.applyTheme()

	app.coordinator.SetFailureHandler(app.onMutationFailure)
	app.unsubscribe = app.coordinator.Events().Subscribe(app.onEvent)

	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		if !app.uiReady {
			app.uiReady = true
		}
		w, _ := screen.Size()
		if w != app.screenWidth {
			app.screenWidth = w
			app.renderTable()
		}
		return false
	})

	return app
}

// Coordinator exposes the list pipeline
func (a *App) Coordinator() *services.ListCoordinator { return a.coordinator }

func (a *App) initViews() {
	a.table = tview.NewTable().SetSelectable(true, false)
	a.table.SetBorder(true)
	a.table.SetTitle(fmt.Sprintf(" %s ", a.Config.Folder))

	a.status = tview.NewTextView().SetDynamicColors(true)
	a.errorHandler = NewErrorHandler(a.Application, a.status, a.statusBaseline, a.logger)
	a.errorHandler.SetColors(a.levelColor)
	a.status.SetText(a.statusBaseline())

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.table, 0, 1, true).
		AddItem(a.status, 1, 0, false)
	a.Pages.AddPage("main", main, true, true)
}

func (a *App) applyTheme() {
	colors := config.DefaultColors()
	if a.Config.Theme != "" {
		loader := config.NewThemeLoader(config.DefaultThemeDir())
		theme, err := loader.LoadThemeFromFile(a.Config.Theme)
		if err != nil {
			a.logger.Printf("theme %q: %v", a.Config.Theme, err)
		} else {
			colors = theme
		}
	}
	a.renderer.UpdateFromConfig(colors)
	a.table.SetBackgroundColor(colors.Body.BgColor.Color())
	a.status.SetBackgroundColor(colors.Body.BgColor.Color())
	a.status.SetTextColor(colors.Body.FgColor.Color())
}

// SetConfigSource registers src so the reload key can re-read it. Theme and
// key bindings of every newly loaded configuration take effect immediately;
// other settings need a restart.
func (a *App) SetConfigSource(src ConfigSource) {
	a.configSrc = src
	src.AddWatcher(func(cfg *config.Config) {
		a.QueueUpdateDraw(func() { a.applyConfig(cfg) })
	})
}

func (a *App) reloadConfig() {
	if a.configSrc == nil || a.configSrc.Path() == "" {
		a.errorHandler.ShowWarning(a.ctx, "No configuration file to reload")
		return
	}
	if err := a.configSrc.LoadFromFile(a.configSrc.Path()); err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not reload configuration")
		return
	}
	a.errorHandler.ShowSuccess(a.ctx, "Configuration reloaded")
}

// applyConfig takes over the theme and key bindings of cfg. Must be called
// on the event loop.
func (a *App) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.Config.Theme = cfg.Theme
	a.Config.Keys = cfg.Keys
	a.Keys = cfg.Keys
	a.renderer.SetUndoKey(cfg.Keys.Undo)
	a.applyTheme()
	a.logger.Printf("config: theme=%q undo=%q reloaded", cfg.Theme, cfg.Keys.Undo)
	a.renderTable()
}

// dispatch runs pipeline callbacks on the event loop
func (a *App) dispatch(f func()) {
	a.QueueUpdateDraw(f)
}

// Run loads the list, restores saved undo state and starts the event loop
func (a *App) Run() error {
	a.SetRoot(a.Pages, true)
	a.EnableMouse(true)

	go a.load()

	return a.Application.Run()
}

func (a *App) load() {
	if a.recent != nil {
		if err := a.recent.Load(a.ctx); err != nil {
			a.errorHandler.HandleError(a.ctx, err, "Could not load recent folders")
		}
	}
	if err := a.reload(); err != nil {
		return
	}
	if a.Config.RestoreOnStart {
		a.restoreState()
	}
	if folders, err := a.mailbox.Folders(a.ctx); err == nil {
		a.mu.Lock()
		a.folders = folders
		a.mu.Unlock()
	} else {
		a.logger.Printf("folders: %v", err)
	}
}

// reload syncs the coordinator with the store and fetches missing headers
func (a *App) reload() error {
	a.errorHandler.ShowProgress(a.ctx, "Loading "+a.coordinator.Folder()+"…")
	defer a.errorHandler.ClearProgress()

	if err := a.coordinator.Sync(a.ctx); err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not load messages")
		return err
	}
	var missing []string
	a.mu.RLock()
	for _, it := range a.coordinator.Items() {
		if _, ok := a.headers[it.ID()]; !ok {
			missing = append(missing, it.ID())
		}
	}
	a.mu.RUnlock()

	headers, err := a.mailbox.Headers(a.ctx, missing)
	if err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not load message details")
	}
	a.mu.Lock()
	for id, h := range headers {
		a.headers[id] = h
	}
	a.mu.Unlock()
	a.QueueUpdateDraw(a.renderTable)
	return nil
}

func (a *App) restoreState() {
	if a.state == nil {
		return
	}
	data, ok, err := a.state.Take(a.ctx)
	if err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not read saved undo state")
		return
	}
	if !ok {
		return
	}
	a.QueueUpdateDraw(func() {
		groups, err := a.coordinator.RestoreState(data)
		if err != nil {
			a.logger.Printf("restore state: %v", err)
		}
		if len(groups) > 0 {
			a.showUndo(groups[len(groups)-1])
		}
		a.renderTable()
	})
}

// shutdown saves or commits pending work and closes the log. It is called
// from the event loop before the application stops.
func (a *App) shutdown() {
	if a.state != nil && a.Config.RestoreOnStart {
		err := a.coordinator.SaveState(func(data []byte) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.state.Save(ctx, data)
		})
		if err != nil {
			a.logger.Printf("save state: %v", err)
		}
	}
	a.coordinator.Teardown()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.errorHandler.Stop()
	a.cancel()
}

// Close waits for in-flight mutations and releases resources
func (a *App) Close() {
	a.coordinator.Wait()
	a.closeLogger()
}

func (a *App) quit() {
	a.shutdown()
	a.Stop()
}

func (a *App) statusBaseline() string {
	folder := a.Config.Folder
	if a.coordinator != nil {
		folder = a.coordinator.Folder()
	}
	return fmt.Sprintf("%s • %s • %s undo • %s quit", a.Config.Account, folder, a.Keys.Undo, a.Keys.Quit)
}

func (a *App) levelColor(level LogLevel) tcell.Color {
	p := a.renderer.Palette()
	switch level {
	case LogLevelError:
		return p.Error
	case LogLevelWarning:
		return tcell.ColorYellow
	case LogLevelSuccess:
		return tcell.ColorGreen
	default:
		return p.Normal
	}
}

func (a *App) onMutationFailure(f services.MutationFailure) {
	a.errorHandler.ReportFailure(a.ctx, f)
	go func() { _ = a.reload() }()
}

func (a *App) onEvent(e services.Event) {
	a.logger.Printf("event %s group=%s items=%v", e.Kind, e.GroupID, e.ItemIDs)
	if e.Kind == services.EventPlaceholderCommitted {
		a.mu.Lock()
		for _, id := range e.ItemIDs {
			delete(a.selected, id)
		}
		a.mu.Unlock()
	}
}

func (a *App) showUndo(g *services.UndoGroup) {
	a.errorHandler.ShowNotice(a.ctx, fmt.Sprintf("%s • press %s to undo", g.Description(), a.Keys.Undo))
}
