package operation

// System folder identifiers shared by every store backend.
const (
	FolderInbox   = "INBOX"
	FolderTrash   = "TRASH"
	FolderSpam    = "SPAM"
	FolderStarred = "STARRED"
	FolderMuted   = "MUTED"
)

// Delta is the label change a committed operation applies to each item
type Delta struct {
	Add    []string
	Remove []string
}

// Effect computes the label delta for kind when applied from folder.
// added and removed are only consulted for ChangeFolder.
func Effect(kind Kind, folder string, added, removed []string) Delta {
	var d Delta
	switch kind {
	case Delete:
		d.Add = []string{FolderTrash}
		d.Remove = withFolder([]string{FolderInbox}, folder, FolderTrash)
	case Archive:
		d.Remove = withFolder([]string{FolderInbox}, folder, "")
	case ReportSpam, ReportPhishing:
		d.Add = []string{FolderSpam}
		d.Remove = withFolder([]string{FolderInbox}, folder, FolderSpam)
	case MarkNotSpam:
		d.Add = []string{FolderInbox}
		d.Remove = []string{FolderSpam}
	case Mute:
		d.Add = []string{FolderMuted}
		d.Remove = withFolder([]string{FolderInbox}, folder, FolderMuted)
	case RemoveStar:
		d.Remove = []string{FolderStarred}
	case ChangeFolder:
		d.Add = append(d.Add, added...)
		d.Remove = append(d.Remove, removed...)
	}
	return d
}

// LeavesFolder reports whether applying d makes an item disappear from folder
func (d Delta) LeavesFolder(folder string) bool {
	for _, id := range d.Add {
		if id == folder {
			return false
		}
	}
	for _, id := range d.Remove {
		if id == folder {
			return true
		}
	}
	return false
}

func withFolder(base []string, folder, skip string) []string {
	if folder == "" || folder == skip {
		return base
	}
	for _, id := range base {
		if id == folder {
			return base
		}
	}
	return append(base, folder)
}
