package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ambedkargpt/internal/domain"
	"ambedkargpt/internal/summarizer"
)

// Asker is the TUI-facing subset of the pipeline.
type Asker interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}

type answerMsg struct {
	answer *domain.Answer
	err    error
}

// Model is the Bubble Tea model for the interactive question loop.
type Model struct {
	ctx      context.Context
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	answer   *domain.Answer
	summary  string
	status   string
	cursor   int
	busy     bool
	ready    bool
}

// New creates a model asking questions through asker. summary is shown under
// the title.
func New(ctx context.Context, asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the speech (exit to quit)"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		asker:    asker,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Type a question and press Enter.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answerMsg:
		m.busy = false
		m.cursor = 0
		if msg.err != nil {
			m.status = describeError(msg.err)
			m.answer = nil
		} else {
			m.answer = msg.answer
			m.status = fmt.Sprintf("Retrieved %d chunks. Up/Down cycles sources.", msg.answer.SourcesCount)
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if isExit(q) {
				return m, tea.Quit
			}
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.status = fmt.Sprintf("Thinking about %q", q)
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case "down":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.answer.Sources)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if m.answer != nil && len(m.answer.Sources) > 0 {
				n := len(m.answer.Sources)
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	ctx, asker := m.ctx, m.asker
	return func() tea.Msg {
		ans, err := asker.Ask(ctx, q)
		return answerMsg{answer: ans, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("AmbedkarGPT")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var sb strings.Builder
	sb.WriteString(answerStyle.Render("Answer"))
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(m.answer.Text))
	if len(m.answer.Sources) == 0 {
		return sb.String()
	}
	src := m.answer.Sources[m.cursor]
	fmt.Fprintf(&sb, "\n\nSource %d/%d  score=%.3f  chars %d-%d\n\n",
		m.cursor+1, len(m.answer.Sources), src.Score, src.Start, src.End)
	sb.WriteString(highlightBestSentence(src.Text, m.answer.Question))
	return sb.String()
}

// describeError turns a pipeline error into a one-line status message.
func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotInitialized):
		return "Not ready yet: the index has not been built."
	case errors.Is(err, domain.ErrEmptyQuestion):
		return "Please type a question."
	case errors.Is(err, domain.ErrRetrievalEmpty):
		return "No relevant passage found."
	case errors.Is(err, domain.ErrGenerationTimeout):
		return "The model took too long. Please try again."
	case errors.Is(err, domain.ErrGenerationService):
		return "The model is unavailable. Please try again."
	case errors.Is(err, domain.ErrEmbeddingService):
		return "The embedding service is unavailable. Please try again."
	case errors.Is(err, domain.ErrIndexSearch):
		return "The vector store is unavailable. Please try again."
	default:
		return "Error: " + err.Error()
	}
}

func isExit(q string) bool {
	switch strings.ToLower(q) {
	case "exit", "quit", "q":
		return true
	}
	return false
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightBestSentence emphasizes the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := summarizer.Sentences(text)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := tokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(qTokens, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	out := make([]string, len(sentences))
	copy(out, sentences)
	out[best] = highlightStyle.Render(out[best])
	return strings.Join(out, " ")
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlap(query map[string]struct{}, sentence string) int {
	score := 0
	for t := range tokenSet(sentence) {
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
