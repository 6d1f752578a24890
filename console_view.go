package camnotify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const visibleMessages = 8

var (
	consoleHeaderStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("0")).
				Padding(0, 1)

	consoleStatusBarStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("237")).
				Foreground(lipgloss.Color("250")).
				Padding(0, 1)

	consoleSectionStyle = lipgloss.NewStyle().Padding(1, 0, 0, 0)

	consoleLabelStyle   = lipgloss.NewStyle().Width(14)
	consoleFocusStyle   = consoleLabelStyle.Foreground(lipgloss.Color("62")).Bold(true)
	consoleDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	consoleErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	consolePickedStyle  = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("0"))
	consoleRunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

// View renders the console.
func (c *Console) View() string {
	header := consoleHeaderStyle.Width(c.width).Render(lipgloss.JoinHorizontal(
		lipgloss.Center,
		"CamNotify",
		lipgloss.NewStyle().
			Width(max(c.width-13, 0)).
			Align(lipgloss.Right).
			Render(c.now.Format("Mon Jan 2 15:04:05")),
	))

	body := strings.Join([]string{
		c.renderFields(),
		consoleSectionStyle.Render(c.renderStatus()),
		consoleSectionStyle.Render(c.renderMessages()),
	}, "\n")

	statusBar := consoleStatusBarStyle.Width(c.width).Render(c.renderKeys())
	return fmt.Sprintf("%s\n%s\n%s", header, body, statusBar)
}

func (c *Console) renderFields() string {
	var b strings.Builder
	for i, in := range c.inputs {
		field := consoleField(i)
		label := consoleLabelStyle
		marker := "  "
		if field == c.focus {
			label = consoleFocusStyle
			marker = "> "
		}
		value := in.View()
		if field == fieldDevice {
			value = c.renderPicker()
		}
		b.WriteString(marker + label.Render(consoleFieldNames[field]) + value)
		if in.Err != nil {
			b.WriteString(" " + consoleErrorStyle.Render(in.Err.Error()))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) renderPicker() string {
	if c.deviceErr != nil {
		return consoleErrorStyle.Render("device scan failed: " + c.deviceErr.Error())
	}
	if len(c.devices) == 0 {
		return consoleDimStyle.Render("no devices found (ctrl+r to rescan)")
	}
	items := make([]string, 0, len(c.devices))
	for i, idx := range c.devices {
		label := " " + strconv.Itoa(idx) + " "
		if i == c.picked {
			label = consolePickedStyle.Render(label)
		}
		items = append(items, label)
	}
	return strings.Join(items, " ")
}

func (c *Console) renderStatus() string {
	state := c.sched.Status()
	stateText := state.String()
	if state == StateRunning {
		stateText = consoleRunningStyle.Render(stateText)
	}
	stats := c.sched.Stats()
	lines := []string{
		"state:  " + stateText,
		fmt.Sprintf("cycles: %d  ok: %d  capture failed: %d  upload failed: %d",
			stats.Cycles, stats.Successes, stats.CaptureFailures, stats.UploadFailures),
	}
	if last := stats.LastResult; last != nil {
		lines = append(lines, "last:   "+describeResult(last))
	}
	return strings.Join(lines, "\n")
}

func (c *Console) renderMessages() string {
	msgs := c.messages
	if len(msgs) > visibleMessages {
		msgs = msgs[len(msgs)-visibleMessages:]
	}
	if len(msgs) == 0 {
		return consoleDimStyle.Render("f1 for help")
	}
	return consoleDimStyle.Render(strings.Join(msgs, "\n"))
}

// renderKeys dims the start or stop key that the current state ignores.
func (c *Console) renderKeys() string {
	start, stop := "ctrl+s start", "ctrl+x stop"
	if !c.CanStart() {
		start = consoleDimStyle.Render(start)
	}
	if !c.CanStop() {
		stop = consoleDimStyle.Render(stop)
	}
	return strings.Join([]string{"tab move", "enter apply", start, stop, "ctrl+r devices", "esc quit"}, " | ")
}
