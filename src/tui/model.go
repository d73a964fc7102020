// Package tui is the terminal dashboard for the DevOps Copilot backend.
//
// Every backend call is issued from a tea.Cmd. Component state is only advanced in
// Update, so a response is applied, or discarded as stale, on the event loop.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"copilot-dash/src/api"
	"copilot-dash/src/contracts"
	"copilot-dash/src/dashboard"
	"copilot-dash/src/events"
	"copilot-dash/src/listsync"
	"copilot-dash/src/logpager"
	"copilot-dash/src/tasks"
)

type screen int

const (
	screenPipelines screen = iota
	screenAgents
	screenSettings
	screenDetail
)

var tabOrder = []screen{screenPipelines, screenAgents, screenSettings}

func (s screen) key() int { return int(s) + 1 }

func (s screen) title() string {
	switch s {
	case screenPipelines:
		return "Pipelines"
	case screenAgents:
		return "Agents"
	case screenSettings:
		return "Settings"
	case screenDetail:
		return "Detail"
	}
	return "?"
}

type (
	eventMsg        events.Event
	eventsClosedMsg struct{}
	healthMsg       struct{}

	pipelinesMsg struct {
		ticket listsync.Ticket
		items  []contracts.Pipeline
		err    error
	}
	tasksMsg struct {
		ticket listsync.Ticket
		items  []contracts.AgentTask
		err    error
	}
	logsMsg struct {
		pager *logpager.Pager
		res   logpager.Result
	}
	analysisMsg struct {
		pipelineID string
		res        *contracts.AnalysisResult
		err        error
	}
	taskActionMsg struct {
		done  string
		rerun bool
		err   error
	}
	seedMsg struct {
		res *contracts.SeedResult
		err error
	}
	resetMsg struct {
		res *contracts.ResetResult
		err error
	}
	copyMsg struct {
		entries int
		err     error
	}
)

// detailState is the per-pipeline view opened from the pipeline list.
type detailState struct {
	pipeline  contracts.Pipeline
	pager     *logpager.Pager
	logs      viewport.Model
	filter    textinput.Model
	filtering bool
}

// taskForm is the "new agent task" form on the Agents screen.
type taskForm struct {
	pipeline textinput.Model
	typeIdx  int
}

func (f taskForm) taskType() contracts.TaskType {
	return contracts.TaskTypes[f.typeIdx%len(contracts.TaskTypes)]
}

// Model is the root bubbletea model.
type Model struct {
	ctx    context.Context
	app    *dashboard.App
	styles *StyleConfig
	events <-chan events.Event

	header   Header
	progress Progress
	width    int
	height   int
	ready    bool
	screen   screen

	pipelineList   list.Model
	pipelinesFirst bool
	search         textinput.Model
	searching      bool

	taskList     list.Model
	taskPending  bool
	rerunPending bool
	form         *taskForm

	detail *detailState

	settingsPending bool

	notice    string
	noticeErr bool
}

// New builds the root model and subscribes it to dashboard events.
func New(ctx context.Context, app *dashboard.App) (Model, error) {
	styles := DefaultStyles()

	ch, err := app.Bus().Subscribe(ctx, "tui")
	if err != nil {
		return Model{}, fmt.Errorf("subscribe to dashboard events: %w", err)
	}

	pipelines := list.New(nil, newPipelineDelegate(styles), 0, 0)
	configureList(&pipelines)
	taskList := list.New(nil, newTaskDelegate(styles), 0, 0)
	configureList(&taskList)

	search := textinput.New()
	search.Prompt = "🔍 "
	search.Placeholder = "search name or status"

	return Model{
		ctx:          ctx,
		app:          app,
		styles:       styles,
		events:       ch,
		header:       NewHeader(app.Config().APIBase, styles),
		progress:     NewProgress(styles),
		pipelineList: pipelines,
		taskList:     taskList,
		search:       search,
	}, nil
}

func configureList(l *list.Model) {
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowPagination(true)
	l.DisableQuitKeybindings()
}

// Run starts the dashboard and blocks until the user quits.
func Run(ctx context.Context, app *dashboard.App) error {
	m, err := New(ctx, app)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init loads both lists and starts listening for events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.progress.Tick(),
		m.waitForEvent(),
		m.loadPipelines(),
		m.loadTasks(),
	)
}

// Update handles messages and advances component state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.handleEvent(events.Event(msg))
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.events = nil
		return m, nil

	case healthMsg:
		m.header.SetHealth(m.app.Health().Status())
		return m, nil

	case pipelinesMsg:
		m.app.Pipelines().Complete(msg.ticket, msg.items, msg.err)
		m.pipelinesFirst = true
		m.syncPipelines()
		return m, nil

	case tasksMsg:
		m.app.Tasks().Complete(msg.ticket, msg.items, msg.err)
		m.syncTasks()
		return m, nil

	case logsMsg:
		if m.detail == nil || m.detail.pager != msg.pager {
			return m, nil
		}
		if msg.pager.Apply(msg.res) && msg.res.Err != nil {
			m.setError("Failed to load logs", msg.res.Err)
		}
		m.renderLogs()
		return m, nil

	case analysisMsg:
		m.app.Analysis().Complete(msg.pipelineID, msg.res, msg.err)
		m.renderLogs()
		return m, nil

	case taskActionMsg:
		if msg.rerun {
			m.rerunPending = false
		} else {
			m.taskPending = false
		}
		if msg.err != nil {
			m.setError(msg.done+" failed", msg.err)
		} else {
			m.setNotice(msg.done)
		}
		m.syncTasks()
		return m, nil

	case seedMsg:
		m.settingsPending = false
		if msg.err != nil {
			m.setError(dashboard.MsgSeedFailed, msg.err)
		} else {
			m.setNotice(fmt.Sprintf("Seeded %d demo pipelines: %v", len(msg.res.Pipelines), msg.res.Pipelines))
		}
		m.syncPipelines()
		return m, nil

	case resetMsg:
		m.settingsPending = false
		if msg.err != nil {
			m.setError(dashboard.MsgResetFailed, msg.err)
		} else {
			m.setNotice(msg.res.Message)
		}
		m.syncPipelines()
		return m, nil

	case copyMsg:
		if msg.err != nil {
			m.setError("Copy failed", msg.err)
		} else {
			m.setNotice(fmt.Sprintf("Copied %d log entries to the clipboard", msg.entries))
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.progress, cmd = m.progress.Update(msg)
	cmds = append(cmds, cmd)

	// Cursor blink for whichever input is focused
	switch {
	case m.searching:
		m.search, cmd = m.search.Update(msg)
		cmds = append(cmds, cmd)
	case m.form != nil:
		m.form.pipeline, cmd = m.form.pipeline.Update(msg)
		cmds = append(cmds, cmd)
	case m.detail != nil && m.detail.filtering:
		m.detail.filter, cmd = m.detail.filter.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(ev events.Event) {
	switch ev.Type {
	case events.HealthChanged:
		m.header.SetHealth(m.app.Health().Status())
	case events.ListRefreshed:
		m.syncPipelines()
		m.syncTasks()
	}
}

func (m *Model) setNotice(s string) {
	m.notice, m.noticeErr = s, false
}

func (m *Model) setError(prefix string, err error) {
	var ue *api.UserError
	if errors.As(api.WrapError(err, m.app.Config().APIBase), &ue) {
		m.notice = fmt.Sprintf("%s: %s", prefix, ue.Message)
	} else {
		m.notice = fmt.Sprintf("%s: %v", prefix, err)
	}
	m.noticeErr = true
}

func (m *Model) syncPipelines() {
	all := m.app.Pipelines().Items()
	visible := dashboard.FilterPipelines(all, m.search.Value())
	items := make([]list.Item, len(visible))
	for i, p := range visible {
		items[i] = pipelineItem{Pipeline: p}
	}
	m.pipelineList.SetItems(items)
}

func (m *Model) syncTasks() {
	all := m.app.Tasks().Items()
	items := make([]list.Item, len(all))
	for i, t := range all {
		items[i] = taskItem{Task: t}
	}
	m.taskList.SetItems(items)
}

func (m Model) selectedPipeline() (contracts.Pipeline, bool) {
	it, ok := m.pipelineList.SelectedItem().(pipelineItem)
	return it.Pipeline, ok
}

func (m Model) selectedTask() (contracts.AgentTask, bool) {
	it, ok := m.taskList.SelectedItem().(taskItem)
	return it.Task, ok
}

// Commands. Each captures what it needs so it can run off the event loop.

func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) probeHealth() tea.Cmd {
	ctx, mon := m.ctx, m.app.Health()
	return func() tea.Msg {
		mon.Probe(ctx)
		return healthMsg{}
	}
}

func (m Model) loadPipelines() tea.Cmd {
	ctx, s := m.ctx, m.app.Pipelines()
	t := s.Begin()
	return func() tea.Msg {
		items, err := s.Fetch(ctx, t)
		return pipelinesMsg{ticket: t, items: items, err: err}
	}
}

func (m Model) loadTasks() tea.Cmd {
	ctx, s := m.ctx, m.app.Tasks()
	t := s.Begin()
	return func() tea.Msg {
		items, err := s.Fetch(ctx, t)
		return tasksMsg{ticket: t, items: items, err: err}
	}
}

func (m Model) fetchLogs(p *logpager.Pager, req logpager.Request) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return logsMsg{pager: p, res: p.Fetch(ctx, req)}
	}
}

func (m Model) runAnalysis(pipelineID string) tea.Cmd {
	ctx, client := m.ctx, m.app.Client()
	return func() tea.Msg {
		res, err := client.Analyze(ctx, pipelineID)
		return analysisMsg{pipelineID: pipelineID, res: res, err: err}
	}
}

func (m Model) createTask(pipelineID string, typ contracts.TaskType, done string) tea.Cmd {
	ctx, orch := m.ctx, m.app.Orchestrator()
	return func() tea.Msg {
		return taskActionMsg{done: done, err: orch.Create(ctx, pipelineID, typ)}
	}
}

func (m Model) rerunTask(id int64) tea.Cmd {
	ctx, orch := m.ctx, m.app.Orchestrator()
	return func() tea.Msg {
		err := orch.Rerun(ctx, id)
		return taskActionMsg{done: fmt.Sprintf("Reran task #%d", id), rerun: true, err: err}
	}
}

func (m Model) seed() tea.Cmd {
	ctx, app := m.ctx, m.app
	return func() tea.Msg {
		res, err := app.Seed(ctx)
		return seedMsg{res: res, err: err}
	}
}

func (m Model) reset() tea.Cmd {
	ctx, app := m.ctx, m.app
	return func() tea.Msg {
		res, err := app.Reset(ctx)
		return resetMsg{res: res, err: err}
	}
}

func copyLogs(p *logpager.Pager) tea.Cmd {
	return func() tea.Msg {
		n := len(p.Buffer().Entries)
		return copyMsg{entries: n, err: p.CopyToClipboard()}
	}
}

// openDetail switches to the detail view for p with a fresh pager.
func (m *Model) openDetail(p contracts.Pipeline) tea.Cmd {
	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.Placeholder = "search logs"

	pager := m.app.NewPager(p.ID)
	m.detail = &detailState{
		pipeline: p,
		pager:    pager,
		logs:     viewport.New(0, 0),
		filter:   filter,
	}
	m.screen = screenDetail
	m.header.SetActive(screenPipelines)
	m.notice = ""
	m.resizeComponents()
	return m.fetchLogs(pager, pager.BeginReset(""))
}

func (m *Model) closeDetail() {
	if m.detail != nil {
		m.app.Analysis().Forget(m.detail.pipeline.ID)
	}
	m.detail = nil
	m.screen = screenPipelines
}

func (m *Model) switchTo(s screen) tea.Cmd {
	if m.screen == screenDetail {
		m.closeDetail()
	}
	m.screen = s
	m.header.SetActive(s)
	m.notice = ""
	m.searching = false
	m.search.Blur()
	m.form = nil
	switch s {
	case screenAgents:
		return m.loadTasks()
	case screenPipelines:
		return m.loadPipelines()
	}
	return nil
}

// createFromForm validates and submits the new-task form.
func (m *Model) createFromForm() tea.Cmd {
	f := m.form
	pipelineID := f.pipeline.Value()
	typ := f.taskType()
	switch err := tasks.Validate(pipelineID, typ); {
	case errors.Is(err, tasks.ErrEmptyPipelineID):
		m.notice, m.noticeErr = "Enter a pipeline id first", true
		return nil
	case errors.Is(err, tasks.ErrTaskTypeDisabled):
		m.notice, m.noticeErr = "Fix tasks are not available yet", true
		return nil
	case err != nil:
		m.setError("Cannot create task", err)
		return nil
	}
	if m.taskPending || m.app.Orchestrator().Creating() {
		m.notice, m.noticeErr = "A task is already being created", true
		return nil
	}
	m.form = nil
	m.taskPending = true
	m.setNotice(fmt.Sprintf("Creating %s task for %s...", typ, pipelineID))
	return m.createTask(pipelineID, typ, fmt.Sprintf("Created %s task for %s", typ, pipelineID))
}
