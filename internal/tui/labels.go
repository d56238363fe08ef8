package tui

import (
	"fmt"

	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/ajramos/leavebehind/internal/services"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

const labelsPage = "labels"

func labelText(name string, applied bool) string {
	mark := " "
	if applied {
		mark = "x"
	}
	return tview.Escape(fmt.Sprintf("[%s] %s", mark, name))
}

// commonLabels returns the labels every one of ids carries
func commonLabels(ids []string, headers map[string]services.Header) []string {
	if len(ids) == 0 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, id := range ids {
		for _, l := range headers[id].Labels {
			if counts[l] == 0 {
				order = append(order, l)
			}
			counts[l]++
		}
	}
	var out []string
	for _, l := range order {
		if counts[l] == len(ids) {
			out = append(out, l)
		}
	}
	return out
}

// openLabelPicker shows the folder checklist for the selection
func (a *App) openLabelPicker() {
	ids := a.targets()
	if len(ids) == 0 {
		return
	}
	a.mu.RLock()
	folders := append([]recent.Entry(nil), a.folders...)
	present := commonLabels(ids, a.headers)
	a.mu.RUnlock()
	if len(folders) == 0 {
		a.errorHandler.ShowWarning(a.ctx, "Folders are still loading")
		return
	}
	known := make([]string, 0, len(folders))
	for _, f := range folders {
		known = append(known, f.ID)
	}

	session, err := a.coordinator.OpenLabelEditor(ids, present, known, false)
	if err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not open labels")
		return
	}
	agg := session.Aggregator()

	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true)
	list.SetTitle(fmt.Sprintf(" Labels for %d conversation(s) ", len(ids)))
	for _, f := range folders {
		list.AddItem(labelText(f.Name, agg.IsPresent(f.ID)), "", 0, nil)
	}
	list.SetSelectedFunc(func(index int, _ string, _ string, _ rune) {
		f := folders[index]
		session.Toggle(f.ID)
		list.SetItemText(index, labelText(f.Name, agg.IsPresent(f.ID)), "")
	})

	closePicker := func() {
		a.Pages.RemovePage(labelsPage)
		a.SetFocus(a.table)
	}
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape:
			session.Cancel()
			closePicker()
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 's':
			closePicker()
			a.submitLabels(session)
			return nil
		}
		return event
	})

	hint := tview.NewTextView().SetTextAlign(tview.AlignCenter)
	hint.SetText("Enter: Toggle | s: Save | ESC: Cancel")
	hint.SetTextColor(tcell.ColorGray)

	view := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(list, 0, 1, true).
		AddItem(hint, 1, 0, false)
	a.Pages.AddPage(labelsPage, modal(view, 50, 20), true, true)
	a.SetFocus(list)
}

func (a *App) submitLabels(session *services.LabelEditSession) {
	g, err := session.Commit(a.ctx)
	if err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not change labels")
		return
	}
	a.clearSelection()
	if g != nil {
		a.showUndo(g)
		a.renderTable()
		return
	}
	a.errorHandler.ShowSuccess(a.ctx, "Labels updated")
	ids := session.ItemIDs()
	go func() {
		headers, err := a.mailbox.Headers(a.ctx, ids)
		if err != nil {
			a.logger.Printf("reload headers: %v", err)
			return
		}
		a.mu.Lock()
		for id, h := range headers {
			a.headers[id] = h
		}
		a.mu.Unlock()
		a.QueueUpdateDraw(a.renderTable)
	}()
}

// modal centers p in a box of the given size
func modal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
