// Package tui provides the Bubble Tea flashcard interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robalobadob/kana/apps/go-server/internal/game"
	"github.com/robalobadob/kana/apps/go-server/internal/play"
)

// Options control what the player sees.
type Options struct {
	KatakanaHint bool
	RomajiHint   bool
	Timeout      time.Duration // per hand-off; 0 means 15s
}

// Model implements the Bubble Tea game UI.
type Model struct {
	ctrl *play.Controller
	opts Options

	width  int
	height int

	state   game.State
	round   game.Round
	last    *game.Round // previous round, scored
	busy    bool        // advance/retry running
	outcome *play.Outcome
	err     error
}

type advancedMsg struct {
	scored  game.Round
	state   game.State
	outcome *play.Outcome
	err     error
}

type retriedMsg struct {
	outcome *play.Outcome
	err     error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	cardStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2).BorderForeground(lipgloss.Color("#8C8C8C"))
	selectedStyle = cardStyle.Copy().BorderForeground(lipgloss.Color("#C89A3A"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	goodStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	badStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a model and starts the first game.
func NewModel(ctrl *play.Controller, opts Options) *Model {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	m := &Model{ctrl: ctrl, opts: opts}
	m.start()
	return m
}

func (m *Model) start() {
	m.last, m.outcome, m.err = nil, nil, nil
	st, err := m.ctrl.Start(context.Background())
	m.state, m.err = st, err
	m.refreshRound()
}

func (m *Model) refreshRound() {
	if r, err := m.ctrl.Current(); err == nil {
		m.round = r
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case advancedMsg:
		m.busy = false
		m.state, m.err = msg.state, msg.err
		if msg.scored.Selected != nil {
			scored := msg.scored
			m.last = &scored
		}
		m.outcome = msg.outcome
		m.refreshRound()
		return m, nil
	case retriedMsg:
		m.busy = false
		m.outcome, m.err = msg.outcome, msg.err
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		if m.state.Status == game.StatusFinished {
			if m.ctrl.Submitting() {
				return m, nil
			}
			m.start()
			return m, nil
		}
		return m, m.advance()
	case tea.KeyRunes:
	default:
		return m, nil
	}
	if m.busy || len(msg.Runes) != 1 {
		return m, nil
	}
	switch key := msg.Runes[0]; {
	case key >= '1' && key <= '9':
		i := int(key - '1')
		if m.state.Status == game.StatusInProgress && i < len(m.round.Cards) {
			st, err := m.ctrl.Select(m.round.Cards[i].ID)
			m.state, m.err = st, err
		}
	case key == 'k':
		m.opts.KatakanaHint = !m.opts.KatakanaHint
	case key == 'r':
		m.opts.RomajiHint = !m.opts.RomajiHint
	case key == 's':
		if m.state.Status == game.StatusFinished && m.ctrl.Unsent() {
			return m, m.retry()
		}
	case key == 'q':
		return m, tea.Quit
	}
	return m, nil
}

// advance scores the current round off the UI goroutine; the last round
// may submit over the network.
func (m *Model) advance() tea.Cmd {
	if m.state.Selected == "" {
		m.err = game.ErrPrematureAdvance
		return nil
	}
	m.busy = true
	ctrl, timeout := m.ctrl, m.opts.Timeout
	scored := m.round.Clone()
	if c, ok := scored.Candidate(m.state.Selected); ok {
		scored.Selected = &c
		scored.IsCorrect = c.ID == scored.Answer.ID
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, out, err := ctrl.Advance(ctx)
		return advancedMsg{scored: scored, state: st, outcome: out, err: err}
	}
}

func (m *Model) retry() tea.Cmd {
	m.busy = true
	ctrl, timeout := m.ctrl, m.opts.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		out, err := ctrl.Retry(ctx)
		return retriedMsg{outcome: out, err: err}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("kana"))
	b.WriteString("\n\n")

	switch m.state.Status {
	case game.StatusInProgress:
		b.WriteString(m.renderRound())
	case game.StatusFinished:
		b.WriteString(m.renderResult())
	}
	if m.last != nil && m.state.Status == game.StatusInProgress {
		b.WriteString("\n")
		b.WriteString(renderScored(*m.last))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(badStyle.Render(m.err.Error()))
	}
	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())

	content := b.String()
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderRound() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d/%d   score %d\n\n", m.state.RoundIndex+1, m.state.RoundLimit, m.state.Accuracy)
	fmt.Fprintf(&b, "Which one is %q?\n\n", m.round.Answer.Romaji)

	cards := make([]string, 0, len(m.round.Cards))
	for i, c := range m.round.Cards {
		lines := []string{fmt.Sprintf("%d", i+1), c.Hiragana}
		if m.opts.KatakanaHint {
			lines = append(lines, hintStyle.Render(c.Katakana))
		}
		if m.opts.RomajiHint {
			lines = append(lines, hintStyle.Render(c.Romaji))
		}
		style := cardStyle
		if c.ID == m.state.Selected {
			style = selectedStyle
		}
		cards = append(cards, style.Render(strings.Join(lines, "\n")))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	return b.String()
}

func renderScored(r game.Round) string {
	if r.IsCorrect {
		return goodStyle.Render(fmt.Sprintf("%s (%s) was right", r.Answer.Hiragana, r.Answer.Romaji))
	}
	return badStyle.Render(fmt.Sprintf("%s was %s; the answer was %s", r.Selected.Hiragana, r.Selected.Romaji, r.Answer.Hiragana))
}

func (m *Model) renderResult() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Finished: %d/%d correct (%d%%)\n", m.state.Accuracy, m.state.RoundLimit,
		game.Percent(m.state.Accuracy, m.state.RoundLimit))
	switch {
	case m.busy || m.ctrl.Submitting():
		b.WriteString(hintStyle.Render("saving..."))
	case m.outcome != nil && m.outcome.Staged:
		b.WriteString(hintStyle.Render("saved locally; run `kana login` to sync it"))
	case m.outcome != nil && m.outcome.Summary != nil:
		b.WriteString(goodStyle.Render(fmt.Sprintf("saved to your history (accuracy %d%%)", m.outcome.Summary.Accuracy)))
	case m.ctrl.Unsent():
		b.WriteString(badStyle.Render("not saved; press s to retry"))
	}
	return b.String()
}

func (m *Model) renderFooter() string {
	keys := "1-4 pick  enter next  k katakana  r romaji  q quit"
	if m.state.Status == game.StatusFinished {
		keys = "enter new game  s retry save  q quit"
	}
	return footerStyle.Render(keys)
}
