package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CountValidation(t *testing.T) {
	_, err := New(Delete, 0)
	assert.ErrorIs(t, err, ErrInvalidCount)

	_, err = New(Delete, -3)
	assert.ErrorIs(t, err, ErrInvalidCount)

	op, err := New(Delete, 1)
	require.NoError(t, err)
	assert.Equal(t, Delete, op.Kind())
	assert.Equal(t, 1, op.Count())
	assert.False(t, op.IsBatch())
	assert.Equal(t, TypeUndo, op.Type())
	assert.Equal(t, "1 conversation deleted", op.Description())
}

func TestNew_BatchFlag(t *testing.T) {
	op, err := New(Archive, 3)
	require.NoError(t, err)
	assert.True(t, op.IsBatch())
	assert.Equal(t, "3 conversations archived", op.Description())
	assert.Equal(t, "Archived", op.SingularDescription())
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		count int
		want  string
	}{
		{"delete_one", Delete, 1, "1 conversation deleted"},
		{"delete_many", Delete, 4, "4 conversations deleted"},
		{"spam", ReportSpam, 2, "2 conversations marked as spam"},
		{"not_spam", MarkNotSpam, 1, "1 conversation marked as not spam"},
		{"mute", Mute, 5, "5 conversations muted"},
		{"unstar", RemoveStar, 1, "1 conversation unstarred"},
		{"phishing", ReportPhishing, 2, "2 conversations reported as phishing"},
		{"change_folder", ChangeFolder, 2, "Folders changed for 2 conversations"},
		{"unknown", Kind("explode"), 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.kind, tt.count))
		})
	}
}

func TestDescribeSingular_UnmappedKinds(t *testing.T) {
	assert.Equal(t, "Deleted", DescribeSingular(Delete))
	assert.Equal(t, "Removed", DescribeSingular(ChangeFolder))
	assert.Equal(t, "", DescribeSingular(Mute))
	assert.Equal(t, "", DescribeSingular(Kind("nope")))
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("Report-Spam")
	assert.True(t, ok)
	assert.Equal(t, ReportSpam, k)

	k, ok = ParseKind(" archive ")
	assert.True(t, ok)
	assert.Equal(t, Archive, k)

	_, ok = ParseKind("launch")
	assert.False(t, ok)

	assert.True(t, Mute.Known())
	assert.False(t, Kind("MUTE").Known())
}

func TestEffect(t *testing.T) {
	d := Effect(Delete, "Work", nil, nil)
	assert.Equal(t, []string{FolderTrash}, d.Add)
	assert.ElementsMatch(t, []string{FolderInbox, "Work"}, d.Remove)
	assert.True(t, d.LeavesFolder("Work"))

	d = Effect(Archive, FolderInbox, nil, nil)
	assert.Empty(t, d.Add)
	assert.True(t, d.LeavesFolder(FolderInbox))

	d = Effect(Archive, "Work", nil, nil)
	assert.Empty(t, d.Add)
	assert.ElementsMatch(t, []string{FolderInbox, "Work"}, d.Remove)
	assert.True(t, d.LeavesFolder("Work"))

	d = Effect(Mute, "Work", nil, nil)
	assert.Equal(t, []string{FolderMuted}, d.Add)
	assert.ElementsMatch(t, []string{FolderInbox, "Work"}, d.Remove)
	assert.True(t, d.LeavesFolder("Work"))

	d = Effect(Mute, FolderMuted, nil, nil)
	assert.Equal(t, []string{FolderInbox}, d.Remove)

	d = Effect(MarkNotSpam, FolderSpam, nil, nil)
	assert.True(t, d.LeavesFolder(FolderSpam))
	assert.False(t, d.LeavesFolder(FolderInbox))

	d = Effect(ChangeFolder, "Work", []string{"Home"}, []string{"Work"})
	assert.Equal(t, []string{"Home"}, d.Add)
	assert.True(t, d.LeavesFolder("Work"))

	d = Effect(ChangeFolder, "Work", []string{"Home"}, nil)
	assert.False(t, d.LeavesFolder("Work"))
}

func TestUndoData_RoundTrip(t *testing.T) {
	op, err := New(Archive, 2)
	require.NoError(t, err)
	in := UndoData{GroupID: "g1", Op: op, ItemID: "42", Position: 7}

	data, err := in.Encode()
	require.NoError(t, err)
	out, err := DecodeUndoData(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeUndoData_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "{"},
		{"no_item", `{"kind":"delete","count":1}`},
		{"bad_kind", `{"kind":"boom","count":1,"item_id":"1"}`},
		{"zero_count", `{"kind":"delete","count":0,"item_id":"1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUndoData([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeList_Empty(t *testing.T) {
	list, err := DecodeList(nil)
	assert.NoError(t, err)
	assert.Empty(t, list)
}
