package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// handleSearchKey edits the pipeline search box. The list is filtered as you type.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.search.SetValue("")
		fallthrough
	case "enter":
		m.searching = false
		m.search.Blur()
		m.syncPipelines()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.syncPipelines()
	return m, cmd
}

// handleFilterKey edits the log filter. Enter starts a new log session for the
// filter; esc leaves the current session untouched.
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.detail
	switch msg.String() {
	case "esc":
		d.filtering = false
		d.filter.SetValue(d.pager.Buffer().Filter)
		d.filter.Blur()
		return m, nil
	case "enter":
		d.filtering = false
		d.filter.Blur()
		req := d.pager.BeginReset(d.filter.Value())
		m.renderLogs()
		return m, m.fetchLogs(d.pager, req)
	}

	var cmd tea.Cmd
	d.filter, cmd = d.filter.Update(msg)
	return m, cmd
}
