package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/csvpipe/internal/config"
	"github.com/nconklindev/csvpipe/internal/converter"
	"github.com/nconklindev/csvpipe/internal/types"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type state int

const (
	stateFilePicker state = iota
	statePreview
	stateProcessing
	stateComplete
	stateError
)

type Model struct {
	state        state
	filepicker   filepicker.Model
	selectedFile string
	fileData     *types.FileData
	plan         types.Plan
	conv         *converter.Converter
	rules        *config.Rules
	result       *types.ConversionResult
	err          error
	width        int
	height       int
	progress     progress.Model
	progressChan chan float64
	resultChan   chan conversionResultMsg
}

type conversionResultMsg struct {
	result *types.ConversionResult
	err    error
}

type fileLoadedMsg struct {
	data *types.FileData
	err  error
}

type conversionCompleteMsg struct {
	result *types.ConversionResult
	err    error
}

type progressMsg float64

type waitForProgressMsg struct{}

// InitialModel builds the picker screen. When startFile is set the picker is
// skipped and that file is previewed right away.
func InitialModel(conv *converter.Converter, rules *config.Rules, startFile string) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv", ".CSV", ".xlsx", ".XLSX"}
	fp.CurrentDirectory, _ = os.Getwd()

	// Set filepicker colors to match theme
	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(colorSoft)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(colorSoft)
	fp.Styles.File = lipgloss.NewStyle().Foreground(colorText)
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(colorMuted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(colorMuted)

	if rules == nil {
		rules = config.Default()
	}

	return Model{
		state:        stateFilePicker,
		filepicker:   fp,
		selectedFile: startFile,
		conv:         conv,
		rules:        rules,
		progress:     newProgress(),
	}
}

func newProgress() progress.Model {
	return progress.New(progress.WithGradient(string(colorAccent), string(colorSoft)))
}

func (m Model) Init() tea.Cmd {
	if m.selectedFile != "" {
		return tea.Batch(m.filepicker.Init(), m.loadFile(m.selectedFile))
	}
	return m.filepicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Subtract space for title, subtitle, help text, and padding
		height := msg.Height - 14
		if height < 5 {
			height = 5
		}

		m.filepicker.SetHeight(height)

		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case stateFilePicker:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			}

		case statePreview:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "esc":
				return m.reset(), nil
			case "enter":
				m.state = stateProcessing
				return m.convertFile()
			}

		case stateComplete, stateError:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				return m, tea.Quit
			case "esc", "n":
				return m.reset(), nil
			}
		}

	case fileLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.fileData = msg.data
		m.plan = converter.BuildPlan(msg.data.Headers, m.rules)
		m.state = statePreview
		return m, nil

	case conversionCompleteMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.result = msg.result
		m.state = stateComplete
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateProcessing {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)
	}

	// Handle filepicker updates
	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			return m, m.loadFile(path)
		}

		return m, cmd
	}

	return m, nil
}

// reset returns to the picker so another file can be converted.
func (m Model) reset() Model {
	m.state = stateFilePicker
	m.selectedFile = ""
	m.fileData = nil
	m.plan = types.Plan{}
	m.result = nil
	m.err = nil
	// a fresh bar starts empty instead of animating down from the last run
	m.progress = newProgress()
	return m
}

func (m Model) loadFile(path string) tea.Cmd {
	return func() tea.Msg {
		if err := converter.CheckSupported(path); err != nil {
			return fileLoadedMsg{err: err}
		}
		data, err := converter.ReadFileData(path)
		return fileLoadedMsg{data: data, err: err}
	}
}

func (m Model) convertFile() (Model, tea.Cmd) {
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan conversionResultMsg, 1)

	// Capture for the goroutine
	progressChan := m.progressChan
	resultChan := m.resultChan
	selectedFile := m.selectedFile
	conv := m.conv

	cmd := tea.Batch(
		func() tea.Msg {
			go func() {
				result, err := conv.Convert(selectedFile, progressChan)

				resultChan <- conversionResultMsg{result: result, err: err}

				close(progressChan)
				close(resultChan)
			}()

			return waitForProgressMsg{}
		},
		m.progress.Init(),
	)

	return m, cmd
}

func waitForProgress(progressChan chan float64, resultChan chan conversionResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			// Progress channel closed, check result
			res, ok := <-resultChan
			if ok {
				return conversionCompleteMsg(res)
			}
			return nil
		}

		return progressMsg(p)
	}
}

func (m Model) View() string {
	switch m.state {
	case stateFilePicker:
		return m.viewFilePicker()
	case statePreview:
		return m.viewPreview()
	case stateProcessing:
		return m.viewProcessing()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▤ csvpipe - CSV to pipe-delimited converter"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Select a CSV or XLSX file to convert"))
	s.WriteString("\n\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press q to quit"))

	return s.String()
}

// columnTags names the rewrites applied to header position i.
func (m Model) columnTags(i int) []string {
	var tags []string
	for _, group := range []struct {
		tag string
		idx []int
	}{
		{"date", m.plan.DateIdx},
		{"amount", m.plan.AmountIdx},
		{"quoted", m.plan.QuoteIdx},
	} {
		for _, idx := range group.idx {
			if idx == i {
				tags = append(tags, group.tag)
				break
			}
		}
	}
	return tags
}

// samplePreview renders the first sample row the way it will be written.
func (m Model) samplePreview() string {
	if m.fileData == nil || len(m.fileData.Rows) == 0 {
		return ""
	}
	row := append([]string(nil), m.fileData.Rows[0]...)
	converter.TransformRow(row, m.plan, m.rules)
	return converter.RowLine(1, row, m.rules)
}

func (m Model) viewPreview() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▤ Conversion Preview"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("File: %s", filepath.Base(m.selectedFile))))
	s.WriteString("\n")
	if m.fileData.HeaderRow > 0 {
		s.WriteString(SubtitleStyle.Render(fmt.Sprintf("Header found on row %d", m.fileData.HeaderRow+1)))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	touched := m.plan.Columns(m.fileData.Headers)
	if len(touched) > 0 {
		s.WriteString(SuccessStyle.Render(fmt.Sprintf("✓ %d column(s) will be rewritten", len(touched))))
	} else {
		s.WriteString(UnselectedStyle.Render("No known columns found, rows are only numbered"))
	}
	s.WriteString("\n\n")

	for i, header := range m.fileData.Headers {
		tags := m.columnTags(i)
		if len(tags) == 0 {
			s.WriteString(UnselectedStyle.Render("  " + header))
		} else {
			s.WriteString(CheckedStyle.Render(fmt.Sprintf("✓ %s (%s)", header, strings.Join(tags, ", "))))
		}
		s.WriteString("\n")
	}

	if sample := m.samplePreview(); sample != "" {
		s.WriteString("\n")
		s.WriteString(SubtitleStyle.Render("First row:"))
		s.WriteString("\n")
		s.WriteString(SelectedStyle.Render(sample))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("enter: convert • esc: pick another file • q: quit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewProcessing() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("▤ Processing..."))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Converting %s...", filepath.Base(m.selectedFile)))
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())

	return BoxStyle.Render(s.String())
}

func truncatePath(path string, maxLen int) string {
	if len(path) > maxLen {
		return "..." + path[len(path)-maxLen+3:]
	}
	return path
}

func (m Model) viewComplete() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("✓ Conversion Complete!"))
	s.WriteString("\n\n")

	// Leave room for padding and borders
	maxPathLen := m.width - 20
	if maxPathLen < 30 {
		maxPathLen = 30
	}

	s.WriteString(fmt.Sprintf("Saved as %s in folder %s\n",
		filepath.Base(m.result.OutputFile),
		truncatePath(filepath.Dir(m.result.OutputFile), maxPathLen)))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Input:  %s\n", truncatePath(m.result.InputFile, maxPathLen)))
	s.WriteString(SuccessStyle.Render(fmt.Sprintf("Output: %s", truncatePath(m.result.OutputFile, maxPathLen))))
	s.WriteString("\n\n")
	if len(m.result.ColumnsFound) > 0 {
		s.WriteString(fmt.Sprintf("Columns rewritten: %s\n", strings.Join(m.result.ColumnsFound, ", ")))
	}
	s.WriteString(fmt.Sprintf("Rows written: %d\n", m.result.RowsProcessed))
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("n: convert another file • q: quit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewError() string {
	var s strings.Builder

	s.WriteString(ErrorStyle.Render("✗ Error"))
	s.WriteString("\n\n")
	s.WriteString("An error occurred while processing:\n")
	s.WriteString(m.err.Error())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("n: try another file • q: quit"))

	return BoxStyle.Render(s.String())
}
