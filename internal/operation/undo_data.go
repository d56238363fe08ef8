package operation

import (
	"encoding/json"
	"fmt"
)

// UndoData pairs a pending operation with one affected item so a pending
// placeholder can be rebuilt after the process is torn down.
type UndoData struct {
	GroupID  string
	Op       Operation
	ItemID   string
	Position int
}

type undoWire struct {
	GroupID  string `json:"group_id"`
	Kind     Kind   `json:"kind"`
	Count    int    `json:"count"`
	Type     Type   `json:"type"`
	ItemID   string `json:"item_id"`
	Position int    `json:"position"`
}

func (u UndoData) wire() undoWire {
	return undoWire{
		GroupID:  u.GroupID,
		Kind:     u.Op.Kind(),
		Count:    u.Op.Count(),
		Type:     u.Op.Type(),
		ItemID:   u.ItemID,
		Position: u.Position,
	}
}

func (w undoWire) undoData() (UndoData, error) {
	if w.ItemID == "" {
		return UndoData{}, fmt.Errorf("undo data: missing item id")
	}
	if !w.Kind.Known() {
		return UndoData{}, fmt.Errorf("undo data: unknown kind %q", w.Kind)
	}
	op, err := NewWithType(w.Kind, w.Count, w.Type)
	if err != nil {
		return UndoData{}, fmt.Errorf("undo data: %w", err)
	}
	return UndoData{GroupID: w.GroupID, Op: op, ItemID: w.ItemID, Position: w.Position}, nil
}

// Encode serializes u
func (u UndoData) Encode() ([]byte, error) {
	return json.Marshal(u.wire())
}

// DecodeUndoData parses the output of Encode
func DecodeUndoData(data []byte) (UndoData, error) {
	var w undoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return UndoData{}, fmt.Errorf("undo data: %w", err)
	}
	return w.undoData()
}

// EncodeList serializes several entries as one blob
func EncodeList(list []UndoData) ([]byte, error) {
	wires := make([]undoWire, 0, len(list))
	for _, u := range list {
		wires = append(wires, u.wire())
	}
	return json.Marshal(wires)
}

// DecodeList parses the output of EncodeList. An empty blob yields no entries.
func DecodeList(data []byte) ([]UndoData, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var wires []undoWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("undo data: %w", err)
	}
	out := make([]UndoData, 0, len(wires))
	for _, w := range wires {
		u, err := w.undoData()
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
