// Package tui is an interactive terminal client for the guide pipeline.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ftbhabuk/yatra/internal/service"
)

// PlannerPort is the TUI-facing subset of the planner.
type PlannerPort interface {
	PlanGuide(ctx context.Context, place string) (*service.PlanResult, error)
}

// Model is the Bubble Tea model for the guide client.
type Model struct {
	planner  PlannerPort
	input    textinput.Model
	viewport viewport.Model
	status   string
	busy     bool
	ready    bool
}

type guideMsg struct {
	place  string
	result *service.PlanResult
	err    error
}

// New creates a new TUI model instance.
func New(planner PlannerPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a place name and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{planner: planner, input: ti, viewport: vp, status: "Ready. Type a place to plan a trip."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		return m, nil
	case guideMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		if msg.result.FromCache {
			m.status = fmt.Sprintf("Guide for %q (cached %s)", msg.place, msg.result.CachedAt)
		} else {
			m.status = fmt.Sprintf("Guide for %q (%d chunks)", msg.place, msg.result.TotalChunks)
		}
		m.viewport.SetContent(renderGuide(msg.result))
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			place := strings.TrimSpace(m.input.Value())
			if place != "" && !m.busy {
				m.busy = true
				m.status = fmt.Sprintf("Planning a guide for %q...", place)
				return m, m.planCmd(place)
			}
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) planCmd(place string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.planner.PlanGuide(context.Background(), place)
		return guideMsg{place: place, result: result, err: err}
	}
}

// View renders the TUI layout and the current guide.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Yatra Travel Guides")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func renderGuide(result *service.PlanResult) string {
	var b strings.Builder
	b.WriteString(result.Result)
	if len(result.Sources) > 0 {
		b.WriteString("\n\n")
		b.WriteString(sourceHeaderStyle.Render("Sources"))
		for _, s := range result.Sources {
			fmt.Fprintf(&b, "\n  %.3f  %s (%s)", s.Similarity, s.Title, s.URL)
		}
	}
	return b.String()
}

var (
	resultBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sourceHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
