package theme

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles describes the Lip Gloss styles used to lay out a device page.
type Styles struct {
	Frame     *lipgloss.Style
	Title     *lipgloss.Style
	Indicator *lipgloss.Style
	Rule      *lipgloss.Style
	Body      *lipgloss.Style
	Label     *lipgloss.Style
	Value     *lipgloss.Style
	Error     *lipgloss.Style
	Hint      *lipgloss.Style
	// Chrome wraps the simulated panel in the terminal simulator.
	Chrome *lipgloss.Style
}

// New builds the style set against a renderer. Renderers without colour
// support (such as the e-ink surface) produce plain text with the same
// layout.
func New(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Frame: ptr(
			r.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")),
		),
		Title: ptr(
			r.NewStyle().Foreground(lipgloss.Color("255")).Bold(true),
		),
		Indicator: ptr(
			r.NewStyle().Foreground(lipgloss.Color("245")).Align(lipgloss.Right),
		),
		Rule: ptr(
			r.NewStyle().Foreground(lipgloss.Color("238")),
		),
		Body: ptr(
			r.NewStyle().Foreground(lipgloss.Color("250")),
		),
		Label: ptr(
			r.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
		),
		Value: ptr(
			r.NewStyle().Foreground(lipgloss.Color("250")),
		),
		Error: ptr(
			r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		),
		Hint: ptr(
			r.NewStyle().Foreground(lipgloss.Color("241")).Italic(true),
		),
		Chrome: ptr(
			r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("33")).Padding(0, 1),
		),
	}
}

var (
	defaultStyles = New(lipgloss.DefaultRenderer())
	plainStyles   = New(plainRenderer())
)

func plainRenderer() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return r
}

// Default exposes the colour style set for terminal output.
func Default() *Styles {
	return defaultStyles
}

// Plain exposes the style set for monochrome surfaces. It renders no escape
// sequences, so every output cell is one rune.
func Plain() *Styles {
	return plainStyles
}

func ptr(style lipgloss.Style) *lipgloss.Style {
	return &style
}
