package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"copilot-dash/src/analysis"
	"copilot-dash/src/contracts"
	"copilot-dash/src/logpager"
)

// typing reports whether a text input owns the keyboard.
func (m Model) typing() bool {
	return m.searching || m.form != nil || (m.detail != nil && m.detail.filtering)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if !m.typing() {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "1", "2", "3":
			next := tabOrder[int(msg.Runes[0]-'1')]
			return m, m.switchTo(next)
		case "tab":
			if m.screen != screenDetail {
				return m, m.switchTo(tabOrder[(int(m.screen)+1)%len(tabOrder)])
			}
		}
	}

	switch m.screen {
	case screenPipelines:
		return m.handlePipelinesKey(msg)
	case screenDetail:
		return m.handleDetailKey(msg)
	case screenAgents:
		return m.handleAgentsKey(msg)
	case screenSettings:
		return m.handleSettingsKey(msg)
	}
	return m, nil
}

func (m Model) handlePipelinesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "/":
		m.searching = true
		return m, m.search.Focus()
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.syncPipelines()
		}
		return m, nil
	case "r":
		m.notice = ""
		return m, tea.Batch(m.probeHealth(), m.loadPipelines())
	case "enter":
		p, ok := m.selectedPipeline()
		if !ok {
			return m, nil
		}
		return m, m.openDetail(p)
	}

	var cmd tea.Cmd
	m.pipelineList, cmd = m.pipelineList.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.detail
	if d.filtering {
		return m.handleFilterKey(msg)
	}

	id := d.pipeline.ID
	switch msg.String() {
	case "esc":
		m.closeDetail()
		m.header.SetActive(screenPipelines)
		return m, nil
	case "/":
		d.filtering = true
		return m, d.filter.Focus()
	case "r":
		req := d.pager.BeginReset(d.pager.Buffer().Filter)
		m.renderLogs()
		return m, m.fetchLogs(d.pager, req)
	case "m":
		req, err := d.pager.BeginExtend()
		switch {
		case errors.Is(err, logpager.ErrBusy):
			m.notice, m.noticeErr = "Logs are still loading", true
			return m, nil
		case err != nil:
			m.setError("Cannot load more", err)
			return m, nil
		}
		m.renderLogs()
		return m, m.fetchLogs(d.pager, req)
	case "c":
		if len(d.pager.Buffer().Entries) == 0 {
			m.notice, m.noticeErr = "No logs to copy", true
			return m, nil
		}
		return m, copyLogs(d.pager)
	case "a":
		if err := m.app.Analysis().Begin(id); err != nil {
			if errors.Is(err, analysis.ErrPending) {
				m.notice, m.noticeErr = "Analysis already in progress", true
				return m, nil
			}
			m.setError("Cannot analyze", err)
			return m, nil
		}
		m.renderLogs()
		return m, m.runAnalysis(id)
	case "t":
		if m.taskPending || m.app.Orchestrator().Creating() {
			m.notice, m.noticeErr = "A task is already being created", true
			return m, nil
		}
		m.taskPending = true
		m.setNotice("Creating RCA agent task...")
		return m, m.createTask(id, contracts.TaskRCA, "RCA agent task created. See Agents page.")
	}

	var cmd tea.Cmd
	d.logs, cmd = d.logs.Update(msg)
	return m, cmd
}

func (m Model) handleAgentsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form != nil {
		return m.handleFormKey(msg)
	}

	switch msg.String() {
	case "n":
		in := textinput.New()
		in.Prompt = "pipeline: "
		in.Placeholder = "pipeline id"
		if p, ok := m.selectedPipeline(); ok {
			in.SetValue(p.ID)
		}
		cmd := in.Focus()
		m.form = &taskForm{pipeline: in}
		m.notice = ""
		return m, cmd
	case "e":
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if m.rerunPending || m.app.Orchestrator().Rerunning() {
			m.notice, m.noticeErr = "A rerun is already in progress", true
			return m, nil
		}
		m.rerunPending = true
		m.setNotice("Rerunning task...")
		return m, m.rerunTask(task.ID)
	case "r":
		m.notice = ""
		return m, m.loadTasks()
	}

	var cmd tea.Cmd
	m.taskList, cmd = m.taskList.Update(msg)
	return m, cmd
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.form = nil
		return m, nil
	case "tab":
		m.form.typeIdx = (m.form.typeIdx + 1) % len(contracts.TaskTypes)
		return m, nil
	case "shift+tab":
		m.form.typeIdx = (m.form.typeIdx + len(contracts.TaskTypes) - 1) % len(contracts.TaskTypes)
		return m, nil
	case "enter":
		return m, m.createFromForm()
	}

	var cmd tea.Cmd
	m.form.pipeline, cmd = m.form.pipeline.Update(msg)
	return m, cmd
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s", "x":
		if m.settingsPending || m.app.SettingsBusy() {
			m.notice, m.noticeErr = "Another demo data action is running", true
			return m, nil
		}
		m.settingsPending = true
		if msg.String() == "s" {
			m.setNotice("Seeding demo data...")
			return m, m.seed()
		}
		m.setNotice("Resetting demo data...")
		return m, m.reset()
	case "r":
		return m, m.probeHealth()
	}
	return m, nil
}
