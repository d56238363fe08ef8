package tui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ajramos/leavebehind/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

// LogLevel represents the severity of a message
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelWarning
	LogLevelError
	LogLevelSuccess
)

// DefaultMessageTimeout is how long a transient message stays on the status line
const DefaultMessageTimeout = 5 * time.Second

// ErrorHandler owns the status line. A transient message is shown over a
// progress line, then the pending undo notice, then the baseline text.
type ErrorHandler struct {
	mu       sync.Mutex
	app      *tview.Application
	view     *tview.TextView
	baseline func() string
	colors   func(LogLevel) tcell.Color
	logger   *log.Logger
	timeout  time.Duration

	message      string
	messageLevel LogLevel
	messageSeq   uint64
	progress     string
	notice       string
	timer        *time.Timer
}

// NewErrorHandler creates a status line handler. app may be nil, in which
// case updates are applied on the calling goroutine.
func NewErrorHandler(app *tview.Application, view *tview.TextView, baseline func() string, logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{
		app:      app,
		view:     view,
		baseline: baseline,
		logger:   logger,
		timeout:  DefaultMessageTimeout,
	}
}

// SetColors sets the palette lookup used for message text
func (eh *ErrorHandler) SetColors(colors func(LogLevel) tcell.Color) {
	eh.mu.Lock()
	eh.colors = colors
	eh.mu.Unlock()
}

// SetTimeout changes how long transient messages stay visible
func (eh *ErrorHandler) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	eh.mu.Lock()
	eh.timeout = d
	eh.mu.Unlock()
}

func (eh *ErrorHandler) logf(format string, args ...interface{}) {
	if eh.logger != nil {
		eh.logger.Printf(format, args...)
	}
}

// queue runs f on the event loop
func (eh *ErrorHandler) queue(f func()) {
	if eh.app != nil {
		eh.app.QueueUpdateDraw(f)
		return
	}
	f()
}

// HandleError logs err and tells the user userMsg. Errors that only
// describe a lost race are logged and otherwise dropped.
func (eh *ErrorHandler) HandleError(ctx context.Context, err error, userMsg string) {
	if err == nil {
		return
	}
	if services.IsIgnorable(err) {
		eh.logf("ignored: %v", err)
		return
	}
	eh.logf("ERROR: %v", err)

	if userMsg == "" {
		userMsg = "Something went wrong"
	}
	level := LogLevelError
	if errors.Is(err, services.ErrDialogAlreadyShown) || errors.Is(err, services.ErrNoItems) {
		level = LogLevelWarning
	}
	eh.ShowMessage(ctx, userMsg, level)
}

// ReportFailure tells the user a committed action was rejected by the store
func (eh *ErrorHandler) ReportFailure(ctx context.Context, f services.MutationFailure) {
	n := len(f.Mutation.ItemIDs)
	noun := "conversation"
	if n != 1 {
		noun = "conversations"
	}
	eh.HandleError(ctx, f.Err, fmt.Sprintf("Could not %s %d %s", actionName(f.Op.Kind()), n, noun))
}

// ShowMessage shows a transient message that clears itself after the timeout
func (eh *ErrorHandler) ShowMessage(ctx context.Context, msg string, level LogLevel) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	eh.logf("%s: %s", eh.levelToString(level), msg)
	formatted := eh.formatMessage(msg, level)
	eh.queue(func() { eh.setMessage(formatted, level) })
}

func (eh *ErrorHandler) setMessage(msg string, level LogLevel) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	if eh.timer != nil {
		eh.timer.Stop()
	}
	eh.messageSeq++
	seq := eh.messageSeq
	eh.message = msg
	eh.messageLevel = level
	eh.timer = time.AfterFunc(eh.timeout, func() {
		eh.queue(func() { eh.expireMessage(seq) })
	})
	eh.refreshLocked()
}

// expireMessage clears the transient message unless a newer one replaced it
func (eh *ErrorHandler) expireMessage(seq uint64) {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	if eh.messageSeq != seq {
		return
	}
	eh.message = ""
	eh.timer = nil
	eh.refreshLocked()
}

// ShowNotice shows msg until it is cleared or replaced
func (eh *ErrorHandler) ShowNotice(ctx context.Context, msg string) {
	formatted := eh.formatMessage(msg, LogLevelInfo)
	eh.queue(func() {
		eh.mu.Lock()
		eh.notice = formatted
		eh.refreshLocked()
		eh.mu.Unlock()
	})
}

// ClearNotice removes the notice
func (eh *ErrorHandler) ClearNotice() {
	eh.queue(func() {
		eh.mu.Lock()
		eh.notice = ""
		eh.refreshLocked()
		eh.mu.Unlock()
	})
}

// Stop cancels the pending message timer
func (eh *ErrorHandler) Stop() {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	if eh.timer != nil {
		eh.timer.Stop()
		eh.timer = nil
	}
}

// formatMessage formats a message with appropriate icon
func (eh *ErrorHandler) formatMessage(msg string, level LogLevel) string {
	var icon string

	switch level {
	case LogLevelInfo:
		icon = "ℹ️"
	case LogLevelWarning:
		icon = "⚠️"
	case LogLevelError:
		icon = "❌"
	case LogLevelSuccess:
		icon = "✅"
	default:
		icon = "•"
	}

	return fmt.Sprintf("%s %s", icon, msg)
}

func (eh *ErrorHandler) levelToString(level LogLevel) string {
	switch level {
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelSuccess:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// refreshLocked redraws the status line. Must be called with eh.mu held.
func (eh *ErrorHandler) refreshLocked() {
	if eh.view == nil {
		return
	}
	text, level := eh.text()
	eh.view.SetText(tview.Escape(text))
	if eh.colors != nil {
		eh.view.SetTextColor(eh.colors(level))
	}
}

// text picks what the status line shows. Must be called with eh.mu held.
func (eh *ErrorHandler) text() (string, LogLevel) {
	switch {
	case eh.message != "":
		return eh.message, eh.messageLevel
	case eh.progress != "":
		return eh.progress, LogLevelInfo
	case eh.notice != "":
		return eh.notice, LogLevelInfo
	case eh.baseline != nil:
		return eh.baseline(), LogLevelInfo
	default:
		return "leavebehind", LogLevelInfo
	}
}

// ShowInfo shows an info message
func (eh *ErrorHandler) ShowInfo(ctx context.Context, msg string) {
	eh.ShowMessage(ctx, msg, LogLevelInfo)
}

// ShowWarning shows a warning message
func (eh *ErrorHandler) ShowWarning(ctx context.Context, msg string) {
	eh.ShowMessage(ctx, msg, LogLevelWarning)
}

// ShowSuccess shows a success message
func (eh *ErrorHandler) ShowSuccess(ctx context.Context, msg string) {
	eh.ShowMessage(ctx, msg, LogLevelSuccess)
}

// ShowProgress shows msg while a load is running
func (eh *ErrorHandler) ShowProgress(ctx context.Context, msg string) {
	eh.setProgress(msg)
}

// ClearProgress clears the progress line
func (eh *ErrorHandler) ClearProgress() {
	eh.setProgress("")
}

func (eh *ErrorHandler) setProgress(msg string) {
	eh.queue(func() {
		eh.mu.Lock()
		eh.progress = msg
		eh.refreshLocked()
		eh.mu.Unlock()
	})
}
