package followupconsole

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cranesection/internal/domain/followup"
)

const maxListed = 15

// Lister loads follow-ups. *followup.Service from the usecase package satisfies it.
type Lister interface {
	List(ctx context.Context, filter followup.Filter) ([]followup.Followup, error)
}

type Options struct {
	Sections        []string
	Section         string
	Status          string
	RefreshInterval time.Duration
}

type model struct {
	ctx             context.Context
	lister          Lister
	sections        []string
	sectionFilter   string
	statusFilter    followup.Status
	refreshInterval time.Duration

	items         []followup.Followup
	selectedIndex int
	status        string
}

type itemsLoadedMsg struct {
	items []followup.Followup
	err   error
}

type tickMsg struct{}

func NewModel(ctx context.Context, lister Lister, options Options) tea.Model {
	sections := options.Sections
	if len(sections) == 0 {
		sections = followup.DefaultSections
	}
	status, err := followup.ParseStatus(options.Status)
	if err != nil || strings.TrimSpace(options.Status) == "" {
		status = ""
	}
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &model{
		ctx:             ctx,
		lister:          lister,
		sections:        sections,
		sectionFilter:   strings.TrimSpace(options.Section),
		statusFilter:    status,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case itemsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.items = msg.items
		switch {
		case len(m.items) == 0:
			m.selectedIndex = 0
			m.status = "no follow-ups"
		case m.selectedIndex >= len(m.items):
			m.selectedIndex = len(m.items) - 1
		}
		if len(m.items) > 0 {
			m.status = fmt.Sprintf("loaded %d follow-ups", len(m.items))
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.items)-1 {
				m.selectedIndex++
			}
			return m, nil
		case "f":
			m.sectionFilter = nextValue(m.sections, m.sectionFilter)
			m.selectedIndex = 0
			return m, m.loadCmd()
		case "s":
			statuses := make([]string, 0, len(followup.Statuses))
			for _, status := range followup.Statuses {
				statuses = append(statuses, string(status))
			}
			m.statusFilter = followup.Status(nextValue(statuses, string(m.statusFilter)))
			m.selectedIndex = 0
			return m, m.loadCmd()
		}
	}
	return m, nil
}

func (m *model) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Crane Section Follow-ups"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"section=%s status=%s refresh=%s",
		firstNonEmpty(m.sectionFilter, "all"),
		firstNonEmpty(string(m.statusFilter), "all"),
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Follow-ups"))
	builder.WriteString("\n")
	if len(m.items) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n\n")
	} else {
		start := 0
		if m.selectedIndex >= maxListed {
			start = m.selectedIndex - maxListed + 1
		}
		end := min(start+maxListed, len(m.items))
		for index := start; index < end; index++ {
			item := m.items[index]
			line := fmt.Sprintf("%s [%s] %s #%s %s",
				item.Timestamp,
				firstNonEmpty(string(item.Status), "Open"),
				item.Section,
				item.Equipment,
				firstLine(item.Problem),
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if selected, ok := m.selected(); ok {
		builder.WriteString(fmt.Sprintf("Problem: %s\n", selected.Problem))
		builder.WriteString(fmt.Sprintf("Note: %s\n", firstNonEmpty(selected.Note, "-")))
		builder.WriteString(fmt.Sprintf("Item codes: %s\n", firstNonEmpty(selected.ItemCodes, "-")))
		builder.WriteString(fmt.Sprintf("Reported by: %s\n", selected.ReportedBy))
		builder.WriteString(fmt.Sprintf("Resolved by: %s\n", firstNonEmpty(selected.ResolvedBy, "-")))
		builder.WriteString(fmt.Sprintf("Image: %s\n", firstNonEmpty(selected.ImageURL, "-")))
		builder.WriteString(fmt.Sprintf("Audio: %s\n", firstNonEmpty(selected.AudioURL, "-")))
		builder.WriteString("\n")
	} else {
		builder.WriteString(dimStyle.Render("- no selection"))
		builder.WriteString("\n\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  f section  s status  g refresh  q quit"))
	return builder.String()
}

func (m *model) selected() (followup.Followup, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.items) {
		return followup.Followup{}, false
	}
	return m.items[m.selectedIndex], true
}

func (m *model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *model) loadCmd() tea.Cmd {
	filter := followup.Filter{Section: m.sectionFilter, Status: m.statusFilter}
	return func() tea.Msg {
		items, err := m.lister.List(m.ctx, filter)
		return itemsLoadedMsg{items: items, err: err}
	}
}

// nextValue cycles "" -> values[0] -> ... -> values[n-1] -> "".
func nextValue(values []string, current string) string {
	if current == "" {
		if len(values) == 0 {
			return ""
		}
		return values[0]
	}
	for i, value := range values {
		if value == current && i+1 < len(values) {
			return values[i+1]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return line
}
