package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fahmaliyi/keyvault/auth"
	"github.com/fahmaliyi/keyvault/vault"
)

const revealFor = 5 * time.Second

type viewState int

const (
	stateList viewState = iota
	stateAdd
)

type model struct {
	session   *auth.Session
	names     []string
	cursor    int
	state     viewState
	inputs    []textinput.Model
	msg       string
	revealed  string
	revealSeq int
	clip      *clipboardWriter
}

// hideMsg ends a reveal; seq guards against an older timer hiding a newer reveal.
type hideMsg struct{ seq int }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	msgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("57")).Foreground(lipgloss.Color("0"))
)

// RunTUI browses the secrets of an authenticated session.
func RunTUI(s *auth.Session, clearAfter time.Duration) error {
	m := newModel(s, clearAfter)
	_, err := tea.NewProgram(m).Run()
	if ferr := m.clip.Flush(); err == nil {
		err = ferr
	}
	return err
}

func newModel(s *auth.Session, clearAfter time.Duration) model {
	m := model{
		session: s,
		clip:    newClipboardWriter(clearAfter),
		inputs:  newInputs(),
	}
	return m.refresh()
}

func newInputs() []textinput.Model {
	name := textinput.New()
	name.Placeholder = "Name"
	name.CharLimit = 128

	value := textinput.New()
	value.Placeholder = "Value"
	value.EchoMode = textinput.EchoPassword
	value.EchoCharacter = '*'

	return []textinput.Model{name, value}
}

func (m model) refresh() model {
	names, err := m.session.ListSecretNames()
	if err != nil {
		m.msg = "Error: " + err.Error()
		return m
	}
	m.names = names
	if m.cursor >= len(m.names) {
		m.cursor = max(len(m.names)-1, 0)
	}
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if h, ok := msg.(hideMsg); ok {
		if h.seq == m.revealSeq {
			m.revealed = ""
		}
		return m, nil
	}
	switch m.state {
	case stateAdd:
		return updateAdd(m, msg)
	default:
		return updateList(m, msg)
	}
}

func (m model) View() string {
	if m.state == stateAdd {
		return viewAdd(m)
	}
	return viewList(m)
}

func (m model) selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.names) {
		return "", false
	}
	return m.names[m.cursor], true
}

// --- List ---
func updateList(m model, msg tea.Msg) (model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.names)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "r":
		m = m.refresh()
		m.msg = "Refreshed."
	case "a":
		m.state = stateAdd
		m.msg = ""
		for i := range m.inputs {
			m.inputs[i].SetValue("")
			m.inputs[i].Blur()
		}
		return m, m.inputs[0].Focus()
	case "enter", "v":
		name, ok := m.selected()
		if !ok {
			return m, nil
		}
		value, err := m.session.GetSecret(name)
		if err != nil {
			m.msg = "Error: " + err.Error()
			return m, nil
		}
		m.revealed = value
		m.revealSeq++
		seq := m.revealSeq
		return m, tea.Tick(revealFor, func(time.Time) tea.Msg { return hideMsg{seq: seq} })
	case "c":
		name, ok := m.selected()
		if !ok {
			return m, nil
		}
		value, err := m.session.GetSecret(name)
		if err != nil {
			m.msg = "Error: " + err.Error()
			return m, nil
		}
		if err := m.clip.Copy(value); err != nil {
			m.msg = "Error: " + err.Error()
			return m, nil
		}
		m.msg = name + " copied!"
		if m.clip.clearAfter > 0 {
			m.msg += fmt.Sprintf(" (clears in %s)", m.clip.clearAfter)
		}
	}
	return m, nil
}

func viewList(m model) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Vault Secrets") + "\n\n")
	if len(m.names) == 0 {
		b.WriteString("No secrets stored.\n")
	}
	for i, name := range m.names {
		line := fmt.Sprintf("%-40s", name)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	if m.revealed != "" {
		b.WriteString("\n" + msgStyle.Render("Secret: "+m.revealed))
	}
	if m.msg != "" {
		style := msgStyle
		if strings.HasPrefix(m.msg, "Error:") {
			style = errStyle
		}
		b.WriteString("\n" + style.Render(m.msg))
	}
	b.WriteString("\nCommands: j/k=move, enter=reveal, a=add, c=copy, r=refresh, q=quit")
	return b.String()
}

// --- Add ---
func updateAdd(m model, msg tea.Msg) (model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.state = stateList
			return m, nil
		case "tab", "shift+tab", "down", "up":
			return m, m.focusNext(key.String() == "shift+tab" || key.String() == "up")
		case "enter":
			if !m.inputs[len(m.inputs)-1].Focused() {
				return m, m.focusNext(false)
			}
			return saveAdd(m), nil
		}
	}

	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) focusNext(backward bool) tea.Cmd {
	n := len(m.inputs)
	for i := 0; i < n; i++ {
		if m.inputs[i].Focused() {
			m.inputs[i].Blur()
			if backward {
				return m.inputs[(i-1+n)%n].Focus()
			}
			return m.inputs[(i+1)%n].Focus()
		}
	}
	return m.inputs[0].Focus()
}

func saveAdd(m model) model {
	name := strings.TrimSpace(m.inputs[0].Value())
	value := m.inputs[1].Value()
	if err := vault.ValidateName(name); err != nil {
		m.msg = "Error: " + err.Error()
		return m
	}
	if value == "" {
		m.msg = "Error: empty value"
		return m
	}
	if err := m.session.AddSecret(name, value); err != nil {
		m.msg = "Error: " + err.Error()
		return m
	}

	for i := range m.inputs {
		m.inputs[i].SetValue("")
		m.inputs[i].Blur()
	}
	m.state = stateList
	m = m.refresh()
	m.msg = name + " stored."
	return m
}

func viewAdd(m model) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Add Secret") + "\n\n")
	for _, ti := range m.inputs {
		b.WriteString(fmt.Sprintf("%s: %s\n\n", ti.Placeholder, ti.View()))
	}
	if m.msg != "" {
		b.WriteString(errStyle.Render(m.msg) + "\n")
	}
	b.WriteString("Tab to switch fields, Enter to save, Esc to cancel")
	return b.String()
}
