package loop

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/n4ar/sabi/internal/domain/entity"
	"github.com/n4ar/sabi/internal/domain/service"
)

var (
	styleUser   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	styleModel  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleSystem = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	styleStatus = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleDanger = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// View renders the conversation history, the current state's status
// line, and whichever of the two edit buffers is active (spec §4.6's
// "renderer" is named out of scope for layout detail, but a functioning
// View is still required to drive the bubbletea program).
func (m *Model) View() string {
	if m.quitting {
		return "bye.\n"
	}
	if m.tooSmall {
		return styleError.Render(fmt.Sprintf(
			"terminal too small (%dx%d) — need at least %dx%d; resize or ctrl+c to quit",
			m.width, m.height, minWidth, minHeight,
		)) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHistory())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")

	switch m.state {
	case service.StateReviewAction:
		b.WriteString(m.renderReview())
	case service.StateInput:
		b.WriteString(m.inputBuf.View())
	}

	if m.errorMessage != "" {
		b.WriteString("\n")
		b.WriteString(styleError.Render("error: " + m.errorMessage))
	}
	if m.statusMessage != "" {
		b.WriteString("\n")
		b.WriteString(styleStatus.Render(m.statusMessage))
	}
	return b.String()
}

func (m *Model) renderHistory() string {
	var b strings.Builder
	for _, msg := range m.conversation.Messages() {
		switch msg.Role() {
		case entity.RoleUser:
			b.WriteString(styleUser.Render("you> "))
			b.WriteString(msg.Content())
		case entity.RoleModel:
			b.WriteString(styleModel.Render("agent> "))
			b.WriteString(renderMarkdown(msg.Content()))
		case entity.RoleSystem:
			b.WriteString(styleSystem.Render(msg.Content()))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderMarkdown renders model text through glamour, falling back to the
// raw text if the terminal renderer cannot be built (e.g. no TTY width
// known yet at startup).
func renderMarkdown(s string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return s
	}
	out, err := r.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, "\n")
}

func (m *Model) renderStatusLine() string {
	line := fmt.Sprintf("[%s]", m.state.DisplayName())
	if m.state.ShowsSpinner() {
		line = m.spin.View() + " " + line
	}
	return styleStatus.Render(line)
}

func (m *Model) renderReview() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Proposed: %s %s\n", m.pendingCall.Tool, primaryField(*m.pendingCall)))
	if m.dangerDetected {
		b.WriteString(styleDanger.Render("WARNING: this action is flagged as dangerous or destructive") + "\n")
	}
	b.WriteString(styleBorder.Render(m.actionBuf.View()))
	b.WriteString("\n[enter] run  [esc] cancel")
	return b.String()
}
