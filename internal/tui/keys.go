package tui

import (
	"errors"
	"strings"

	"github.com/ajramos/leavebehind/internal/operation"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/derailed/tcell/v2"
)

func (a *App) bindKeys() {
	a.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Pickers handle their own input
		if name, _ := a.Pages.GetFrontPage(); name != "main" {
			return event
		}
		if event.Key() == tcell.KeyEscape {
			a.clearSelection()
			return nil
		}
		if a.handleConfigurableKey(event) {
			return nil
		}
		return event
	})
}

// handleConfigurableKey checks if a key event matches a configurable shortcut and executes the corresponding action
func (a *App) handleConfigurableKey(event *tcell.EventKey) bool {
	var key string
	switch {
	case event.Key() == tcell.KeyRune:
		key = string(event.Rune())
		if key == " " {
			key = "space"
		}
	default:
		return false
	}

	if kind, ok := a.keyAction(key); ok {
		if a.logger != nil {
			a.logger.Printf("Configurable shortcut: '%s' -> %s", key, kind)
		}
		a.applyAction(kind)
		return true
	}

	switch key {
	case a.Keys.Undo:
		a.undoLast()
	case a.Keys.BulkSelect:
		a.toggleSelected()
	case a.Keys.ManageLabels:
		a.openLabelPicker()
	case a.Keys.GotoFolder:
		a.openFolderPicker()
	case a.Keys.Refresh:
		go func() { _ = a.reload() }()
	case a.Keys.ReloadConfig:
		go a.reloadConfig()
	case a.Keys.Quit:
		a.quit()
	default:
		return false
	}
	return true
}

// keyAction maps a key to the destructive action bound to it
func (a *App) keyAction(key string) (operation.Kind, bool) {
	switch key {
	case "":
		return "", false
	case a.Keys.Delete:
		return operation.Delete, true
	case a.Keys.Archive:
		return operation.Archive, true
	case a.Keys.ReportSpam:
		if a.coordinator.Folder() == operation.FolderSpam {
			return operation.MarkNotSpam, true
		}
		return operation.ReportSpam, true
	case a.Keys.Mute:
		return operation.Mute, true
	}
	return "", false
}

// applyAction runs kind over the selection, or the highlighted row
func (a *App) applyAction(kind operation.Kind) {
	ids := a.targets()
	if len(ids) == 0 {
		return
	}
	g, err := a.coordinator.BulkApply(ids, kind)
	if err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not "+actionName(kind))
		return
	}
	a.clearSelection()
	a.showUndo(g)
	a.renderTable()
}

func (a *App) undoLast() {
	g, err := a.coordinator.UndoLast()
	if err != nil {
		if errors.Is(err, services.ErrNoItems) {
			a.errorHandler.ShowInfo(a.ctx, "Nothing to undo")
			return
		}
		a.errorHandler.HandleError(a.ctx, err, "Could not undo")
		return
	}
	a.errorHandler.ClearNotice()
	a.errorHandler.ShowSuccess(a.ctx, "Undone: "+g.Description())
	a.renderTable()
}

func (a *App) toggleSelected() {
	id, ok := a.currentID()
	if !ok {
		return
	}
	if it, ok := a.coordinator.Item(id); !ok || it.State() != services.StateNormal {
		return
	}
	a.mu.Lock()
	if a.selected[id] {
		delete(a.selected, id)
	} else {
		a.selected[id] = true
	}
	a.mu.Unlock()

	row, _ := a.table.GetSelection()
	a.renderTable()
	if row+1 < a.table.GetRowCount() {
		a.table.Select(row+1, 0)
	}
}

func (a *App) clearSelection() {
	a.mu.Lock()
	a.selected = make(map[string]bool)
	a.mu.Unlock()
	a.renderTable()
}

// actionName is the verb shown in error messages, e.g. "report spam"
func actionName(kind operation.Kind) string {
	return strings.ReplaceAll(kind.String(), "_", " ")
}
