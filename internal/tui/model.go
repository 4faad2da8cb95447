package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"minddock/internal/domain"
	"minddock/internal/summarizer"
)

// Searcher is the TUI-facing search over one owner's memories.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error)
}

// Model is the Bubble Tea model for the search screen.
type Model struct {
	searcher  Searcher
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	subtitle  string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates the model. subtitle is shown under the header.
func New(searcher Searcher, topK int, subtitle string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Search your memories and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{searcher: searcher, topK: topK, input: ti, viewport: vp, subtitle: subtitle, status: "Type to search."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, subtitle, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.search(q)
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) search(q string) {
	res, err := m.searcher.Search(context.Background(), q, m.topK)
	switch {
	case err != nil:
		m.status = "Error: " + err.Error()
		m.results = nil
	case len(res) == 0:
		m.status = fmt.Sprintf("No memories match %q", q)
		m.results = nil
	default:
		m.status = fmt.Sprintf("%d results for %q (up/down to browse)", len(res), q)
		m.results = res
	}
	m.cursor = 0
	m.lastQuery = q
	m.viewport.SetContent(m.renderCurrentResult())
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("MindDock")
	subtitle := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.subtitle)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + subtitle + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	head := fmt.Sprintf("Result %d/%d  score=%.3f", m.cursor+1, len(m.results), r.Score)
	title := titleStyle.Render(r.Memory.Title)
	var meta []string
	if len(r.Memory.Tags) > 0 {
		meta = append(meta, "tags: "+strings.Join(r.Memory.Tags, ", "))
	}
	meta = append(meta, r.Memory.CreatedAt.Local().Format("2006-01-02 15:04"))
	body := highlightBestSentence(r.Memory.Content, m.lastQuery)
	return head + "\n\n" + title + "\n" + metaStyle.Render(strings.Join(meta, "  ")) + "\n\n" + body
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence emphasises the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	sentences := summarizer.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qWords := toSet(summarizer.Words(query))
	if len(qWords) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(qWords, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func overlap(query map[string]struct{}, sentence string) int {
	score := 0
	for w := range toSet(summarizer.Words(sentence)) {
		if _, ok := query[w]; ok {
			score++
		}
	}
	return score
}
