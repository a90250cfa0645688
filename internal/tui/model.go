package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/aristath/consilium/internal/debate"
	"github.com/aristath/consilium/internal/events"
)

// agentPhase is what an agent is currently doing, derived from bus events.
type agentPhase int

const (
	phaseWaiting agentPhase = iota
	phaseDrafting
	phaseDrafted
)

// Model is the root Bubble Tea model: a read-only monitor of one run, fed
// entirely by the event bus. It never touches the engine.
type Model struct {
	spin     spinner.Model
	eventSub <-chan events.Event

	runID    string
	task     string
	started  time.Time
	agents   []debate.Identity
	phases   map[debate.Identity]agentPhase
	round    int
	reviews  int
	latest   *debate.RoundState
	status   debate.RunStatus
	finished bool
	width    int
	quitting bool
}

// New creates a monitor model subscribed to all bus events.
func New(bus *events.Bus) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		spin:     sp,
		eventSub: bus.SubscribeAll(512),
		phases:   make(map[debate.Identity]agentPhase),
		status:   debate.StatusRunning,
	}
}

// Init starts the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForEvent(m.eventSub))
}

// waitForEvent blocks on the next bus event and delivers it as a message.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

type busClosedMsg struct{}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case busClosedMsg:
		return m, tea.Quit

	case events.RunStartedEvent:
		m.runID = msg.ID
		m.task = msg.Task
		m.started = msg.Timestamp
		m.agents = append([]debate.Identity(nil), msg.Agents...)
		sort.Slice(m.agents, func(i, j int) bool { return m.agents[i] < m.agents[j] })
		return m, waitForEvent(m.eventSub)

	case events.RoundStartedEvent:
		m.round = msg.Round
		m.reviews = 0
		for _, a := range m.agents {
			m.phases[a] = phaseDrafting
		}
		return m, waitForEvent(m.eventSub)

	case events.ArtifactProducedEvent:
		m.phases[msg.Artifact.Agent] = phaseDrafted
		return m, waitForEvent(m.eventSub)

	case events.CritiqueRecordedEvent:
		m.reviews++
		return m, waitForEvent(m.eventSub)

	case events.RoundCompletedEvent:
		state := msg.State
		m.latest = &state
		return m, waitForEvent(m.eventSub)

	case events.RunFinishedEvent:
		m.status = msg.Status
		m.finished = true
		return m, waitForEvent(m.eventSub)
	}

	return m, nil
}

// View renders the monitor.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "consilium"
	if m.task != "" {
		title = fmt.Sprintf("consilium: %s", truncate(m.task, 60))
	}
	b.WriteString(styleHeader.Render(title))
	b.WriteString("\n")

	if m.runID == "" {
		b.WriteString(styleDim.Render(m.spin.View() + " waiting for run..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(styleBorder.Render(m.agentTable()))
	b.WriteString("\n")
	b.WriteString(styleDim.Render("q: quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) statusLine() string {
	elapsed := ""
	if !m.started.IsZero() {
		elapsed = humanize.RelTime(m.started, time.Now(), "elapsed", "")
	}

	if m.finished {
		st := styleStatus
		if m.status == debate.StatusFailed {
			st = styleFailed
		}
		return fmt.Sprintf("%s  %s", st.Render(m.status.String()), styleDim.Render(elapsed))
	}

	pairs := len(m.agents) * (len(m.agents) - 1)
	return fmt.Sprintf("%s round %d  reviews %d/%d  %s",
		m.spin.View(), m.round, m.reviews, pairs, styleDim.Render(elapsed))
}

func (m Model) agentTable() string {
	var rows []string
	for _, a := range m.agents {
		rows = append(rows, fmt.Sprintf("%s  %s  %s",
			styleAgent.Render(fmt.Sprintf("%-12s", string(a))),
			m.phaseLabel(a),
			m.verdictSummary(a)))
	}
	if len(rows) == 0 {
		return styleDim.Render("no agents")
	}
	return strings.Join(rows, "\n")
}

func (m Model) phaseLabel(a debate.Identity) string {
	if m.finished {
		return styleDim.Render("done    ")
	}
	switch m.phases[a] {
	case phaseDrafting:
		return "drafting"
	case phaseDrafted:
		return "drafted "
	default:
		return styleDim.Render("waiting ")
	}
}

// verdictSummary shows the critiques the agent received in the latest
// completed round.
func (m Model) verdictSummary(a debate.Identity) string {
	if m.latest == nil {
		return styleDim.Render("-")
	}
	cs := m.latest.Critiques[a]
	if len(cs) == 0 {
		return styleDim.Render("no peers")
	}

	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		label := fmt.Sprintf("%s %.2f", c.Reviewer, c.Score)
		if c.Verdict == debate.VerdictAccept {
			parts = append(parts, styleAccept.Render(label))
		} else {
			parts = append(parts, styleRevise.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

// truncate shortens s to at most n runes, never splitting a multi-byte rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
