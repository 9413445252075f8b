package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/trebuchet-org/sling/internal/cli/render"
	"github.com/trebuchet-org/sling/internal/usecase"
)

// stepItem represents a selectable plan step in the multi-select
type stepItem struct {
	step     *usecase.ExecutionStep
	selected bool
}

// multiSelectModel is the bubbletea model for multi-select
type multiSelectModel struct {
	items     []stepItem
	cursor    int
	title     string
	done      bool
	cancelled bool
}

func initialMultiSelectModel(steps []*usecase.ExecutionStep, title string) multiSelectModel {
	items := make([]stepItem, len(steps))
	for i, step := range steps {
		items[i] = stepItem{step: step}
	}
	return multiSelectModel{items: items, title: title}
}

// Init is the initial command for bubbletea
func (m multiSelectModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m multiSelectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "ctrl+c", "q", "esc":
		m.done = true
		m.cancelled = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ":
		m.items[m.cursor].selected = !m.items[m.cursor].selected
	case "a":
		all := !m.allSelected()
		for i := range m.items {
			m.items[i].selected = all
		}
	case "enter":
		if len(m.selectedNames()) > 0 {
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the UI
func (m multiSelectModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(color.New(color.FgCyan, color.Bold).Sprintf("%s\n\n", m.title))

	for i, item := range m.items {
		cursor := " "
		if m.cursor == i {
			cursor = color.New(color.FgCyan).Sprint("▸")
		}

		checkbox := color.New(color.FgWhite).Sprint("○")
		if item.selected {
			checkbox = color.New(color.FgGreen).Sprint("✓")
		}

		name := color.New(color.FgWhite, color.Bold).Sprint(item.step.Name)
		b.WriteString(fmt.Sprintf("%s %s %s %s\n", cursor, checkbox, name, render.DescribeStep(item.step.Config)))
	}

	b.WriteString("\n")
	b.WriteString(color.New(color.FgYellow).Sprint("↑/↓: move  Space: toggle  a: all  Enter: confirm  q: quit\n"))

	return b.String()
}

func (m multiSelectModel) allSelected() bool {
	for _, item := range m.items {
		if !item.selected {
			return false
		}
	}
	return true
}

func (m multiSelectModel) selectedNames() []string {
	var names []string
	for _, item := range m.items {
		if item.selected {
			names = append(names, item.step.Name)
		}
	}
	return names
}

// SelectSteps shows a multi-select interface and returns the picked step
// names in plan order
func SelectSteps(steps []*usecase.ExecutionStep, title string) ([]string, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps to select")
	}

	p := tea.NewProgram(initialMultiSelectModel(steps, title))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("multi-select failed: %w", err)
	}

	m := finalModel.(multiSelectModel)
	if m.cancelled || !m.done {
		return nil, fmt.Errorf("selection cancelled")
	}

	names := m.selectedNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("no steps selected")
	}
	return names, nil
}
