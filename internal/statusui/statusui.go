// Package statusui is a small read-only operator dashboard, heavily
// downsized from the teacher's internal/tui.Model (2000+ lines covering
// trade entry, pause toggles, and panic-sell hotkeys none of which apply
// here: this bot has no interactive controls, only a status view).
package statusui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mirrorbot/mirrorbot/internal/eventbus"
	"github.com/mirrorbot/mirrorbot/internal/positionbook"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	rowStyle    = lipgloss.NewStyle().PaddingLeft(2)
)

type tickMsg time.Time

// Model renders a read-only snapshot of the bot's position book and bus
// depths, refreshed on a fixed interval.
type Model struct {
	book       *positionbook.Book
	evmBus     *eventbus.Bus
	solanaBus  *eventbus.Bus
	refresh    time.Duration
}

// New builds a Model polling book and the two chain buses every refresh
// interval.
func New(book *positionbook.Book, evmBus, solanaBus *eventbus.Bus, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = time.Second
	}
	return Model{book: book, evmBus: evmBus, solanaBus: solanaBus, refresh: refresh}
}

func (m Model) Init() tea.Cmd {
	return tick(m.refresh)
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tick(m.refresh)
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("mirrorbot") + "  " + dimStyle.Render(time.Now().Format("15:04:05")) + "\n\n")

	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"evm bus: depth=%d dropped=%d   solana bus: depth=%d dropped=%d\n\n",
		m.evmBus.Depth(), m.evmBus.Dropped(), m.solanaBus.Depth(), m.solanaBus.Dropped(),
	)))

	positions := m.book.Snapshot()
	b.WriteString(headerStyle.Render(fmt.Sprintf("open positions (%d)", len(positions))) + "\n")
	for _, p := range positions {
		b.WriteString(rowStyle.Render(fmt.Sprintf(
			"%s  %s  size=%s  avg=%s  age=%s\n",
			p.Chain, p.Key.Token, p.Size.String(), p.AvgPrice.String(), time.Since(p.OpenedAt).Round(time.Second),
		)))
	}

	b.WriteString("\n" + dimStyle.Render("q to quit") + "\n")
	return b.String()
}
