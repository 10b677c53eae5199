package selector

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/NeverVane/histpick/internal/config"
	"github.com/NeverVane/histpick/pkg/security"
)

var themeTemplate = template.Must(template.New("theme").Parse(`* {
    background-color: {{ .Background }};
    text-color:       {{ .Foreground }};
    border-color:     {{ .Border }};
    font:             "{{ .Font }}";
}

window {
    width:        {{ .Width }}%;
    border:       2px;
    border-radius: 6px;
    padding:      8px;
}

mainbox {
    children: [ inputbar, message, listview ];
    spacing:  6px;
}

inputbar {
    children: [ prompt, entry ];
    spacing:  8px;
}

prompt {
    text-color: {{ .Accent }};
}

message {
    border:  0px 0px 1px 0px;
    padding: 0px 0px 4px 0px;
}

textbox {
    text-color: {{ .Foreground }};
}

listview {
    lines:     {{ .Lines }};
    scrollbar: false;
    fixed-height: true;
}

element {
    padding: 2px 4px;
}

element selected.normal {
    background-color: {{ .Accent }};
    text-color:       {{ .Background }};
}

element-text {
    background-color: inherit;
    text-color:       inherit;
}

error-message {
    padding:    10px;
    text-color: {{ .Urgent }};
}
`))

// Theme holds the values substituted into the rasi theme
type Theme struct {
	Font       string
	Width      int
	Lines      int
	Background string
	Foreground string
	Accent     string
	Urgent     string
	Border     string
}

// ThemeFromConfig builds a theme from the [theme] section
func ThemeFromConfig(cfg config.ThemeConfig) Theme {
	return Theme{
		Font:       cfg.Font,
		Width:      cfg.Width,
		Lines:      cfg.Lines,
		Background: cfg.Background,
		Foreground: cfg.Foreground,
		Accent:     cfg.Accent,
		Urgent:     cfg.Urgent,
		Border:     cfg.Border,
	}
}

// Render returns the theme in rofi's rasi format
func (t Theme) Render() (string, error) {
	var buf bytes.Buffer
	if err := themeTemplate.Execute(&buf, t); err != nil {
		return "", fmt.Errorf("failed to render theme: %w", err)
	}
	return buf.String(), nil
}

// WriteTheme renders the theme into a temp file tracked by temp
func WriteTheme(t Theme, temp *security.TempFiles) (string, error) {
	rendered, err := t.Render()
	if err != nil {
		return "", err
	}
	return temp.WriteFile("histpick-theme-*.rasi", []byte(rendered))
}
