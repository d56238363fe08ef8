package tui

import (
	"fmt"

	"github.com/ajramos/leavebehind/internal/recent"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

const foldersPage = "folders"

// folderChoices lists the recent folders first, then every other folder.
// The current folder is left out.
func folderChoices(recents, all []recent.Entry, current string) []recent.Entry {
	seen := map[string]bool{current: true}
	var out []recent.Entry
	for _, e := range recents {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	for _, e := range all {
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out
}

// openFolderPicker shows the quick folder switcher
func (a *App) openFolderPicker() {
	if !a.coordinator.Dialog().TryShow() {
		a.errorHandler.ShowWarning(a.ctx, "A dialog is already open")
		return
	}
	var recents []recent.Entry
	if a.recent != nil {
		recents = a.recent.Recent()
	}
	a.mu.RLock()
	choices := folderChoices(recents, a.folders, a.coordinator.Folder())
	a.mu.RUnlock()

	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true)
	list.SetTitle(" Go to folder ")
	for i, e := range choices {
		text := tview.Escape(e.Name)
		if i < len(recents) {
			text = fmt.Sprintf("%s  (recent)", text)
		}
		list.AddItem(text, "", 0, nil)
	}

	closePicker := func() {
		a.Pages.RemovePage(foldersPage)
		a.coordinator.Dialog().Dismissed()
		a.SetFocus(a.table)
	}
	list.SetSelectedFunc(func(index int, _ string, _ string, _ rune) {
		entry := choices[index]
		closePicker()
		go a.changeFolder(entry)
	})
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			closePicker()
			return nil
		}
		return event
	})

	a.Pages.AddPage(foldersPage, modal(list, 40, 16), true, true)
	a.SetFocus(list)
}

// changeFolder commits pending work, switches folder and reloads the list
func (a *App) changeFolder(entry recent.Entry) {
	a.mailbox.SetFolder(entry.ID)
	_, err := a.coordinator.ChangeFolder(a.ctx, entry)
	a.mu.Lock()
	a.selected = make(map[string]bool)
	a.mu.Unlock()
	a.errorHandler.ClearNotice()
	if err != nil {
		a.errorHandler.HandleError(a.ctx, err, "Could not open "+entry.Name)
	}
	_ = a.reload()
}
