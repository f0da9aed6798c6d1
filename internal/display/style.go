// Package display turns a classified check result into button updates.
package display

import (
	"fmt"
)

// RGBA is a color with 0-255 channels, in the order the host expects.
type RGBA [4]int

var (
	Black = RGBA{0, 0, 0, 255}
	White = RGBA{255, 255, 255, 255}
	Green = RGBA{0, 255, 0, 255}
	Red   = RGBA{255, 0, 0, 255}
)

// Valid reports whether every channel is within 0-255.
func (c RGBA) Valid() bool {
	for _, v := range c {
		if v < 0 || v > 255 {
			return false
		}
	}
	return true
}

// Style is the look of a button for one classification outcome.
type Style struct {
	Background RGBA
	TextColor  RGBA
	Label      string
	ImagePath  string
}

// Styles pairs the match and no-match looks of a button.
type Styles struct {
	Match   Style
	NoMatch Style
}

// For returns the style for the given classification.
func (s Styles) For(isMatch bool) Style {
	if isMatch {
		return s.Match
	}
	return s.NoMatch
}

// ReturnType selects which visual channel a check result updates.
type ReturnType int

const (
	ReturnBackground ReturnType = iota
	ReturnText
	ReturnImage
)

func (r ReturnType) String() string {
	switch r {
	case ReturnBackground:
		return "background_color"
	case ReturnText:
		return "text"
	case ReturnImage:
		return "image"
	}
	return fmt.Sprintf("ReturnType(%d)", int(r))
}
