package config

import (
	"fmt"

	"github.com/derailed/tcell/v2"
)

// Color represents a color in the application
type Color string

const (
	// DefaultColor represents a default color
	DefaultColor Color = "default"

	// TransparentColor represents the terminal bg color
	TransparentColor Color = "-"
)

// NewColor returns a new color
func NewColor(c string) Color {
	return Color(c)
}

// String returns color as string
func (c Color) String() string {
	if c.isHex() {
		return string(c)
	}
	if c == DefaultColor {
		return "-"
	}
	col := c.Color().TrueColor().Hex()
	if col < 0 {
		return "-"
	}
	return fmt.Sprintf("#%06x", col)
}

func (c Color) isHex() bool {
	return len(c) == 7 && c[0] == '#'
}

// Color returns a view color
func (c Color) Color() tcell.Color {
	if c == DefaultColor {
		return tcell.ColorDefault
	}
	return tcell.GetColor(string(c)).TrueColor()
}

// ListColors defines colors for list rows
type ListColors struct {
	NormalColor      Color `yaml:"normalColor"`
	SelectedColor    Color `yaml:"selectedColor"`
	PlaceholderColor Color `yaml:"placeholderColor"`
	UndoKeyColor     Color `yaml:"undoKeyColor"`
	ErrorColor       Color `yaml:"errorColor"`
}

// BodyColors defines colors for body elements
type BodyColors struct {
	FgColor Color `yaml:"fgColor"`
	BgColor Color `yaml:"bgColor"`
}

// ColorsConfig defines the complete color configuration
type ColorsConfig struct {
	Body BodyColors `yaml:"body"`
	List ListColors `yaml:"list"`
}

// DefaultColors returns the default color configuration
func DefaultColors() *ColorsConfig {
	return &ColorsConfig{
		Body: BodyColors{
			FgColor: NewColor("#f8f8f2"),
			BgColor: NewColor("#282a36"),
		},
		List: ListColors{
			NormalColor:      NewColor("#f8f8f2"),
			SelectedColor:    NewColor("#8be9fd"),
			PlaceholderColor: NewColor("#6272a4"),
			UndoKeyColor:     NewColor("#f1fa8c"),
			ErrorColor:       NewColor("#ff5555"),
		},
	}
}
