package tui

import (
	"fmt"
	"sync/atomic"

	"github.com/ajramos/leavebehind/internal/render"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/derailed/tview"
)

// tableSurface is the services.PresentationSurface of the message table. The
// coordinator calls it with its own locks held, so it only schedules a
// redraw and never reads back from the pipeline on the calling goroutine.
// Calls made before the scheduled redraw runs share it.
type tableSurface struct {
	app     *App
	queue   func(f func())
	pending atomic.Bool
}

func newTableSurface(app *App) *tableSurface {
	return &tableSurface{
		app:   app,
		queue: func(f func()) { go app.QueueUpdateDraw(f) },
	}
}

var _ services.PresentationSurface = (*tableSurface)(nil)

func (s *tableSurface) ShowPlaceholder(position int, description string) {
	s.app.logger.Printf("placeholder at %d: %s", position, description)
	s.redraw()
}

func (s *tableSurface) RemoveRow(position int) {
	s.app.logger.Printf("remove row %d", position)
	s.redraw()
}

func (s *tableSurface) RestoreRow(position int) {
	s.app.logger.Printf("restore row %d", position)
	s.redraw()
}

func (s *tableSurface) MeasureHeight(content string) int {
	return s.app.renderer.MeasureHeight(content, s.app.screenWidth)
}

func (s *tableSurface) redraw() {
	if !s.pending.CompareAndSwap(false, true) {
		return
	}
	s.queue(func() {
		s.pending.Store(false)
		s.app.renderTable()
	})
}

// buildRows turns the coordinator's list into display rows. Committed items
// are skipped; placeholders carry their group's description.
func buildRows(items []*services.ListItem, headers map[string]services.Header,
	groupOf func(id string) (*services.UndoGroup, bool), selected map[string]bool) []render.Row {
	rows := make([]render.Row, 0, len(items))
	for _, it := range items {
		switch it.State() {
		case services.StateCommitted:
			continue
		case services.StatePlaceholder:
			text := "Removed"
			if g, ok := groupOf(it.ID()); ok {
				text = g.Description()
			}
			rows = append(rows, render.Row{ID: it.ID(), Kind: render.RowPlaceholder, UndoText: text})
			continue
		}
		h := headers[it.ID()]
		rows = append(rows, render.Row{
			ID:       it.ID(),
			Sender:   h.Sender,
			Subject:  h.Subject,
			Snippet:  h.Snippet,
			Received: h.Received,
			Labels:   h.Labels,
			Selected: selected[it.ID()],
		})
	}
	return rows
}

// renderTable redraws every row. It runs on the event loop.
func (a *App) renderTable() {
	if a.table == nil {
		return
	}
	items := a.coordinator.Items()
	a.mu.RLock()
	rows := buildRows(items, a.headers, a.coordinator.GroupOf, a.selected)
	a.mu.RUnlock()

	current, _ := a.table.GetSelection()
	a.table.Clear()
	ids := make([]string, 0, len(rows))
	width := a.screenWidth - 2
	for i, row := range rows {
		text, color := a.renderer.Render(row, width)
		cell := tview.NewTableCell(tview.Escape(text)).
			SetTextColor(color).
			SetReference(row.ID).
			SetExpansion(1)
		a.table.SetCell(i, 0, cell)
		ids = append(ids, row.ID)
	}
	a.mu.Lock()
	a.rowIDs = ids
	a.mu.Unlock()

	if len(rows) > 0 {
		if current >= len(rows) {
			current = len(rows) - 1
		}
		if current < 0 {
			current = 0
		}
		a.table.Select(current, 0)
	}
	a.table.SetTitle(fmt.Sprintf(" %s (%d) ", a.coordinator.Folder(), len(rows)))
}

// currentID returns the id of the highlighted row
func (a *App) currentID() (string, bool) {
	row, _ := a.table.GetSelection()
	return a.idAt(row)
}

func (a *App) idAt(row int) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if row < 0 || row >= len(a.rowIDs) {
		return "", false
	}
	return a.rowIDs[row], true
}

// targets returns the selected ids, or the highlighted one when nothing is selected
func (a *App) targets() []string {
	a.mu.RLock()
	var ids []string
	for _, id := range a.rowIDs {
		if a.selected[id] {
			ids = append(ids, id)
		}
	}
	a.mu.RUnlock()
	if len(ids) > 0 {
		return ids
	}
	if id, ok := a.currentID(); ok {
		return []string{id}
	}
	return nil
}
