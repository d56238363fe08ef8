package operation

import "fmt"

type plural struct {
	one   string
	other string
}

var pluralTemplates = map[Kind]plural{
	Delete:         {"%d conversation deleted", "%d conversations deleted"},
	ChangeFolder:   {"Folders changed for %d conversation", "Folders changed for %d conversations"},
	Archive:        {"%d conversation archived", "%d conversations archived"},
	ReportSpam:     {"%d conversation marked as spam", "%d conversations marked as spam"},
	MarkNotSpam:    {"%d conversation marked as not spam", "%d conversations marked as not spam"},
	Mute:           {"%d conversation muted", "%d conversations muted"},
	RemoveStar:     {"%d conversation unstarred", "%d conversations unstarred"},
	ReportPhishing: {"%d conversation reported as phishing", "%d conversations reported as phishing"},
}

// Only the kinds that can leave a compact leave-behind have a singular form.
var singularDescriptions = map[Kind]string{
	Delete:       "Deleted",
	Archive:      "Archived",
	ChangeFolder: "Removed",
}

// Describe returns the pluralized description of kind applied to count items.
// Unknown kinds yield an empty string.
func Describe(kind Kind, count int) string {
	tmpl, ok := pluralTemplates[kind]
	if !ok {
		return ""
	}
	if count == 1 {
		return fmt.Sprintf(tmpl.one, count)
	}
	return fmt.Sprintf(tmpl.other, count)
}

// DescribeSingular returns a one-word description, or "" for unmapped kinds
func DescribeSingular(kind Kind) string {
	return singularDescriptions[kind]
}
