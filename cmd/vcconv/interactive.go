package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/atone/format/json"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98")).
			Width(6)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// resultRow is one encoding of the current input.
type resultRow struct {
	err     error
	label   string
	encoded string
	back    string
}

type interactiveModel struct {
	err     error
	rows    []resultRow
	input   textinput.Model
	typeIdx int
	count   int
}

func newInteractiveModel() *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "[1, 2, 3]"
	ti.Prompt = "json> "
	ti.Width = 60
	ti.Focus()

	m := &interactiveModel{input: ti}
	m.recompute()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			m.typeIdx = (m.typeIdx + 1) % len(typeNames)
			m.recompute()
			return m, nil
		case "shift+tab":
			m.typeIdx = (m.typeIdx + len(typeNames) - 1) % len(typeNames)
			m.recompute()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.recompute()
	return m, cmd
}

// recompute decodes the input as JSON and re-encodes it in every format.
func (m *interactiveModel) recompute() {
	m.rows, m.err, m.count = nil, nil, 0

	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	et := elemTypes[typeNames[m.typeIdx]]
	v := et.fresh()
	if err := json.Unmarshal([]byte(text), v); err != nil {
		m.err = err
		return
	}
	m.count = v.Len()

	for _, name := range []string{"json", "wire", "cbor"} {
		c := codecs[name]
		row := resultRow{label: name}
		data, err := c.encode(v)
		if err != nil {
			row.err = err
			m.rows = append(m.rows, row)
			continue
		}
		if c.binary {
			row.encoded = hex.EncodeToString(data)
		} else {
			row.encoded = string(data)
		}

		back := et.fresh()
		if err := c.decode(data, back); err != nil {
			row.err = err
		} else if js, err := json.Marshal(back); err != nil {
			row.err = err
		} else {
			row.back = string(js)
		}
		m.rows = append(m.rows, row)
	}

	row := resultRow{label: "abi"}
	if l, err := lowerABI(context.Background(), et, v); err != nil {
		row.err = err
	} else {
		row.encoded = fmt.Sprintf("ptr=%d len=%d %s", l.ptr, l.length, hex.EncodeToString(l.heap))
		row.back = l.typeName
	}
	m.rows = append(m.rows, row)
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Vc Converter"))
	b.WriteString(" element type ")
	b.WriteString(typeStyle.Render(typeNames[m.typeIdx]))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case len(m.rows) > 0:
		b.WriteString(fmt.Sprintf("%d elements\n\n", m.count))
		for _, r := range m.rows {
			b.WriteString(labelStyle.Render(r.label))
			if r.err != nil {
				b.WriteString(errorStyle.Render(r.err.Error()))
			} else {
				b.WriteString(r.encoded)
				b.WriteString("\n      ")
				b.WriteString(resultStyle.Render("→ " + r.back))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab/shift+tab element type • esc quit"))
	return b.String()
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
