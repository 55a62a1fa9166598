package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/xlsmart/talenthub/internal/client"
	"github.com/xlsmart/talenthub/internal/models"
)

const pollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Error:   lipgloss.Color("#FF005F"),
	Hint:    lipgloss.Color("#6C6C6C"),
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers polling the session status
type tickMsg time.Time

// sessionUpdateMsg carries the updated session state
type sessionUpdateMsg struct {
	report models.ProgressReport
	err    error
}

// progressModel is the bubbletea model for session progress.
type progressModel struct {
	client    *client.Client
	sessionID string
	report    *models.ProgressReport
	progress  progress.Model
	theme     Theme
	done      bool
	quitting  bool
	err       error
}

func newProgressModel(c *client.Client, sessionID string) progressModel {
	return progressModel{
		client:    c,
		sessionID: sessionID,
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.fetchSession(), m.progress.Init())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchSession()

	case sessionUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch session status: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}
		m.report = &msg.report
		if msg.report.Status.Terminal() {
			m.done = true
			m.err = sessionError(msg.report)
			return m, tea.Quit
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}
	if m.report == nil {
		return "Loading session status...\n"
	}

	p := m.report.Progress
	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.report.Status))
	bar := m.progress.ViewAs(fraction(p))
	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")
	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts(p), hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nSession %s continues in background.\nUse 'talenthub sessions %s' to check status.\n",
			m.sessionID, m.sessionID)
		return m.theme.hintStyle().Render(msg)
	}
	if m.report == nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Session %s: %s\n", m.report.Status, m.err)) +
			summary(*m.report)
	}
	return m.theme.completedStyle().Render("✓ Completed") + "\n\n" + summary(*m.report)
}

// fetchSession runs as a command so Update never blocks on the network.
func (m progressModel) fetchSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		state, err := m.client.GetSession(ctx, m.sessionID)
		if err != nil {
			return sessionUpdateMsg{err: err}
		}
		return sessionUpdateMsg{report: state.ProgressReport}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fraction(p models.Progress) float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total)
}

func counts(p models.Progress) string {
	return fmt.Sprintf("%d/%d records", p.Processed, p.Total)
}

// summary renders the final counters of a session.
func summary(r models.ProgressReport) string {
	p := r.Progress
	var b strings.Builder
	fmt.Fprintf(&b, "  Processed:  %d/%d\n", p.Processed, p.Total)
	if p.Assigned > 0 {
		fmt.Fprintf(&b, "  Assigned:   %d\n", p.Assigned)
	}
	if p.Completed > 0 {
		fmt.Fprintf(&b, "  Completed:  %d\n", p.Completed)
	}
	fmt.Fprintf(&b, "  Errors:     %d\n", p.Errors)
	if mode, ok := p.Extra["mode"].(string); ok {
		fmt.Fprintf(&b, "  Mode:       %s\n", mode)
	}
	if len(p.Failures) > 0 {
		fmt.Fprintf(&b, "\n  Failures (%d shown):\n", len(p.Failures))
		for _, f := range p.Failures {
			fmt.Fprintf(&b, "    • %s\n", f)
		}
	}
	return b.String()
}

// sessionError turns a failed or errored session into an error.
func sessionError(r models.ProgressReport) error {
	if r.Status == models.StatusCompleted {
		return nil
	}
	if r.Error != nil && *r.Error != "" {
		return fmt.Errorf("%s", *r.Error)
	}
	return fmt.Errorf("session ended with status %s", r.Status)
}

// followSession shows progress until the session is terminal. On a terminal
// it runs the interactive UI, otherwise it prints one line per update.
// Returns nil on success or Ctrl+C (background), error on session failure.
func followSession(c *client.Client, sessionID string) error {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return runProgressUI(c, sessionID)
	}

	final, err := c.Follow(context.Background(), sessionID, pollInterval, func(r models.ProgressReport) {
		fmt.Printf("[%s] %s\n", r.Status, counts(r.Progress))
	})
	if err != nil {
		return err
	}
	fmt.Print(summary(final))
	return sessionError(final)
}

func runProgressUI(c *client.Client, sessionID string) error {
	p := tea.NewProgram(newProgressModel(c, sessionID))
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		return m.err
	}
	return nil
}
