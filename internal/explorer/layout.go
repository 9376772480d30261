package explorer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Panel width bounds, in pixels.
const (
	DefaultPanelWidth = 250
	MinPanelWidth     = 100
	MaxPanelWidth     = 500
)

// ClampWidth limits w to the allowed panel width range.
func ClampWidth(w int) int {
	return max(MinPanelWidth, min(w, MaxPanelWidth))
}

// Theme selects the colour scheme. It has no effect on behaviour.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ErrInvalidTheme is returned for unknown theme names.
var ErrInvalidTheme = errors.New("invalid theme")

// ParseTheme accepts "dark" or "light"; empty means dark.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(s)) {
	case "", ThemeDark:
		return ThemeDark, nil
	case ThemeLight:
		return ThemeLight, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
}

// Dimension is a CSS length for the widget's width or height.
type Dimension string

// Default widget size.
const (
	DefaultWidth  Dimension = "100vw"
	DefaultHeight Dimension = "100vh"
)

// Pixels formats n as a pixel length.
func Pixels(n float64) Dimension {
	return Dimension(strconv.FormatFloat(n, 'f', -1, 64) + "px")
}

// UnmarshalJSON accepts a number (pixels) or a CSS length string.
func (d *Dimension) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Dimension(s)
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("dimension: %w", err)
	}
	*d = Pixels(n)
	return nil
}

func (d Dimension) orDefault(def Dimension) Dimension {
	if d == "" {
		return def
	}
	return d
}
