package tui

import (
	"time"

	"github.com/ajramos/leavebehind/internal/gesture"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

// A terminal cell is scaled to pixels so the recognizer keeps its pixel
// thresholds: one column is 8px wide and one row 16px tall.
const (
	cellWidthPx  = 8
	cellHeightPx = 16
)

func sampleAt(x, y int, at time.Time) gesture.Sample {
	return gesture.Sample{X: float64(x * cellWidthPx), Y: float64(y * cellHeightPx), At: at}
}

// initGestures feeds mouse drags on the table to the recognizer
func (a *App) initGestures() {
	a.table.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if event == nil {
			return action, event
		}
		x, y := event.Position()
		s := sampleAt(x, y, event.When())

		switch action {
		case tview.MouseLeftDown:
			row, ok := a.rowAt(y)
			if !ok {
				return action, event
			}
			_, _, w, _ := a.table.GetInnerRect()
			a.recognizer.Down(row, float64(w*cellWidthPx), s)
		case tview.MouseMove:
			if !a.recognizer.Active() {
				return action, event
			}
			a.handleGesture(a.recognizer.Move(s))
			if a.recognizer.Dragging() {
				return action, nil
			}
		case tview.MouseLeftUp:
			if !a.recognizer.Active() {
				return action, event
			}
			dragging := a.recognizer.Dragging()
			a.handleGesture(a.recognizer.Up(s))
			if dragging {
				return action, nil
			}
		}
		return action, event
	})
}

// rowAt converts a screen line to a table row
func (a *App) rowAt(y int) (int, bool) {
	_, top, _, height := a.table.GetInnerRect()
	if y < top || y >= top+height {
		return 0, false
	}
	offset, _ := a.table.GetOffset()
	row := y - top + offset
	if row >= a.table.GetRowCount() {
		return 0, false
	}
	return row, true
}

func (a *App) handleGesture(out gesture.Outcome) {
	switch out.Result {
	case gesture.Dismiss:
		id, ok := a.idAt(out.Row)
		if !ok {
			return
		}
		if it, ok := a.coordinator.Item(id); !ok || it.State() != services.StateNormal {
			return
		}
		a.logger.Printf("swipe dismiss row=%d velocity=%.0f", out.Row, out.Velocity)
		g, err := a.coordinator.Dismiss(id)
		if err != nil {
			a.errorHandler.HandleError(a.ctx, err, "Could not delete")
			return
		}
		a.showUndo(g)
		a.renderTable()
	case gesture.Cancel:
		a.renderTable()
	}
}
