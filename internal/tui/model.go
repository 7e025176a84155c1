// Package tui is an interactive terminal browser for nearest-neighbor
// queries.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matsen/wordvec/internal/embedding"
)

// QueryTimeout bounds one lookup or neighbor query.
const QueryTimeout = 10 * time.Second

// Querier is the TUI-facing subset of the embedding service. It is
// satisfied by the REST client and by TableQuerier.
type Querier interface {
	Lookup(ctx context.Context, word string) (embedding.Embedding, bool, error)
	NearestNeighbors(ctx context.Context, word string, topN int) ([]embedding.Neighbor, error)
}

// TableQuerier adapts an in-memory table to Querier.
type TableQuerier struct {
	Table *embedding.Table
}

// Lookup normalizes word like the HTTP service does.
func (q TableQuerier) Lookup(_ context.Context, word string) (embedding.Embedding, bool, error) {
	emb, ok := q.Table.Lookup(embedding.NormalizeWord(word))
	return emb, ok, nil
}

func (q TableQuerier) NearestNeighbors(_ context.Context, word string, topN int) ([]embedding.Neighbor, error) {
	return q.Table.NearestNeighbors(word, topN), nil
}

type mode int

const (
	modeNeighbors mode = iota
	modeLookup
)

func (m mode) String() string {
	if m == modeLookup {
		return "lookup"
	}
	return "neighbors"
}

// neighborsMsg and lookupMsg deliver query results back to Update.
type neighborsMsg struct {
	word      string
	neighbors []embedding.Neighbor
	err       error
}

type lookupMsg struct {
	word  string
	emb   embedding.Embedding
	found bool
	err   error
}

// Model is the Bubble Tea model for the explorer.
type Model struct {
	service   Querier
	topN      int
	input     textinput.Model
	viewport  viewport.Model
	mode      mode
	neighbors []embedding.Neighbor
	lookup    *lookupMsg
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a new explorer model.
func New(service Querier, topN int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a word and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		topN:     topN,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Type a word. Tab switches between neighbors and lookup.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case neighborsMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.neighbors = nil
		} else {
			m.neighbors = msg.neighbors
			m.cursor = 0
			m.lastQuery = msg.word
			if len(msg.neighbors) == 0 {
				m.status = fmt.Sprintf("%q is not in the vocabulary", msg.word)
			} else {
				m.status = fmt.Sprintf("%d neighbors of %q", len(msg.neighbors), msg.word)
			}
		}
		m.refresh()
		return m, nil

	case lookupMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.lookup = nil
		} else {
			m.lookup = &msg
			m.lastQuery = msg.word
			if msg.found {
				m.status = fmt.Sprintf("Vector for %q", msg.word)
			} else {
				m.status = fmt.Sprintf("%q is not in the vocabulary", msg.word)
			}
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := embedding.NormalizeWord(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.status = fmt.Sprintf("Searching %q...", q)
			return m, m.query(q)
		case "tab":
			if m.mode == modeNeighbors {
				m.mode = modeLookup
			} else {
				m.mode = modeNeighbors
			}
			m.status = "Mode: " + m.mode.String()
			m.refresh()
			if q := embedding.NormalizeWord(m.input.Value()); q != "" {
				return m, m.query(q)
			}
			return m, nil
		case "down":
			if m.mode == modeNeighbors && len(m.neighbors) > 0 {
				m.cursor = (m.cursor + 1) % len(m.neighbors)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.mode == modeNeighbors && len(m.neighbors) > 0 {
				m.cursor = (m.cursor - 1 + len(m.neighbors)) % len(m.neighbors)
				m.refresh()
				return m, nil
			}
		case "right":
			// Follow the highlighted neighbor.
			if m.mode == modeNeighbors && len(m.neighbors) > 0 && m.input.Position() == utf8.RuneCountInString(m.input.Value()) {
				w := m.neighbors[m.cursor].Word
				m.input.SetValue(w)
				m.input.CursorEnd()
				return m, m.query(w)
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// query runs the current mode's query off the UI goroutine.
func (m Model) query(word string) tea.Cmd {
	service, topN, md := m.service, m.topN, m.mode
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
		defer cancel()
		if md == modeLookup {
			emb, found, err := service.Lookup(ctx, word)
			return lookupMsg{word: word, emb: emb, found: found, err: err}
		}
		neighbors, err := service.NearestNeighbors(ctx, word, topN)
		return neighborsMsg{word: word, neighbors: neighbors, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Word Vector Explorer  [" + m.mode.String() + "]")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.mode == modeLookup {
		return renderLookup(m.lookup)
	}
	return renderNeighbors(m.neighbors, m.cursor, m.viewport.Width)
}

func renderNeighbors(neighbors []embedding.Neighbor, cursor, width int) string {
	if len(neighbors) == 0 {
		return "No results yet."
	}
	wordWidth := 0
	for _, n := range neighbors {
		wordWidth = max(wordWidth, len(n.Word))
	}
	barWidth := max(10, width-wordWidth-20)

	var b strings.Builder
	for i, n := range neighbors {
		line := fmt.Sprintf("%2d. %-*s %7.4f %s", i+1, wordWidth, n.Word, n.Similarity, bar(n.Similarity, barWidth))
		if i == cursor {
			line = highlightStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// bar draws a similarity in [-1, 1] as a block bar; negatives are empty.
func bar(sim float64, width int) string {
	n := int(math.Round(math.Max(0, math.Min(1, sim)) * float64(width)))
	return barStyle.Render(strings.Repeat("█", n)) + strings.Repeat("·", width-n)
}

func renderLookup(l *lookupMsg) string {
	if l == nil {
		return "No results yet."
	}
	if !l.found {
		return fmt.Sprintf("%q: not found", l.word)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  dim=%d  norm=%.4f\n\n", l.word, l.emb.Dimensions(), l.emb.Norm())
	for i, x := range l.emb.Vector {
		fmt.Fprintf(&b, "%9.5f", x)
		if (i+1)%8 == 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	barStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)
