package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"jobwatch/internal/cancel"
	"jobwatch/internal/duration"
	"jobwatch/internal/jobs"
	"jobwatch/internal/output"
	"jobwatch/internal/utilization"
)

const (
	uiTickInterval = 250 * time.Millisecond
	barWidth       = 12
	nameWidth      = 18
)

type model struct {
	ctx       context.Context
	store     *jobs.Store
	monitor   *jobs.Monitor
	canceller *cancel.Controller
	subtitle  string

	width  int
	height int

	jobs        []jobs.Job
	selectedIdx int
	selectedID  string

	focusArea int // 0 jobs, 1 output

	vpJobs  viewport.Model
	vpOut   viewport.Model
	vpReady bool

	outFollower     *output.Follower
	outContentCache string
	follow          bool

	spinner spinner.Model
	bars    map[utilization.Tier]progress.Model
	lock    *layoutLock

	statusText         string
	statusColor        string
	cancelConfirm      bool
	cancelConfirmJobID string
}

type tickMsg time.Time

type cancelResultMsg struct {
	jobID string
	err   error
}

type refreshResultMsg struct {
	err error
}

func newModel(ctx context.Context, monitor *jobs.Monitor, canceller *cancel.Controller, subtitle string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	bars := make(map[utilization.Tier]progress.Model, 3)
	for _, tier := range []utilization.Tier{utilization.Low, utilization.Medium, utilization.High} {
		bars[tier] = progress.New(
			progress.WithSolidFill(string(tierColor(tier))),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		)
	}

	return model{
		ctx:       ctx,
		store:     monitor.Store(),
		monitor:   monitor,
		canceller: canceller,
		subtitle:  subtitle,
		follow:    true,
		spinner:   s,
		bars:      bars,
		lock:      &layoutLock{},
	}
}

func waitForTick() tea.Cmd {
	return tea.Tick(uiTickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshResultMsg{err: m.monitor.Refresh(m.ctx)}
	}
}

func (m model) cancelCmd(jobID string) tea.Cmd {
	return func() tea.Msg {
		return cancelResultMsg{jobID: jobID, err: m.canceller.Cancel(m.ctx, jobID)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForTick(), m.spinner.Tick)
}

func getJobColor(state jobs.State) lipgloss.Color {
	switch state {
	case jobs.Running:
		return lipgloss.Color("42")
	case jobs.Pending:
		return lipgloss.Color("220")
	case jobs.Completing, jobs.Completed:
		return lipgloss.Color("246")
	case jobs.Failed, jobs.Cancelled, jobs.Timeout:
		return lipgloss.Color("196")
	default:
		return lipgloss.Color("252")
	}
}

// tierColor is used for both the percentage text and the bar fill.
func tierColor(tier utilization.Tier) lipgloss.Color {
	switch tier {
	case utilization.High:
		return lipgloss.Color("196")
	case utilization.Medium:
		return lipgloss.Color("220")
	default:
		return lipgloss.Color("42")
	}
}

func updateViewportContent(vp *viewport.Model, content string, cache *string, follow bool) {
	if *cache == content {
		return
	}
	wasAtBottom := vp.AtBottom()
	yOffset := vp.YOffset
	vp.SetContent(content)
	if follow || wasAtBottom {
		vp.GotoBottom()
	} else {
		vp.SetYOffset(yOffset)
	}
	*cache = content
}

func (m *model) selectedJob() (jobs.Job, bool) {
	if len(m.jobs) == 0 {
		return jobs.Job{}, false
	}
	if m.selectedIdx < 0 {
		m.selectedIdx = 0
	}
	if m.selectedIdx >= len(m.jobs) {
		m.selectedIdx = len(m.jobs) - 1
	}
	return m.jobs[m.selectedIdx], true
}

// ensureSelectionByID keeps the cursor on the same job when rows move, and falls
// back to the nearest row when it disappears.
func (m *model) ensureSelectionByID() {
	if m.selectedID == "" {
		if job, ok := m.selectedJob(); ok {
			m.selectedID = job.ID
		}
		return
	}
	for i, j := range m.jobs {
		if j.ID == m.selectedID {
			m.selectedIdx = i
			return
		}
	}
	if len(m.jobs) == 0 {
		m.selectedIdx = 0
		m.selectedID = ""
		return
	}
	if m.selectedIdx >= len(m.jobs) {
		m.selectedIdx = len(m.jobs) - 1
	}
	m.selectedID = m.jobs[m.selectedIdx].ID
}

func (m *model) switchToJob(job jobs.Job) {
	m.outFollower = output.NewFollower(output.Path(job.SubmitDirectory, job.ID))
	m.follow = true
	if m.vpReady {
		m.outContentCache = "\x00"
		updateViewportContent(&m.vpOut, "", &m.outContentCache, true)
	}
}

// syncJobs re-reads the store. While a modal holds the layout the cursor stays put.
func (m *model) syncJobs() {
	m.jobs = m.store.All()
	if m.lock.held() {
		return
	}
	prev := m.selectedID
	m.ensureSelectionByID()
	if job, ok := m.selectedJob(); ok && (job.ID != prev || m.outFollower == nil) {
		m.selectedID = job.ID
		m.switchToJob(job)
	}
	if len(m.jobs) == 0 {
		m.outFollower = nil
	}
}

func (m *model) pollOutput() {
	if m.outFollower == nil || !m.vpReady {
		return
	}
	job, ok := m.selectedJob()
	if !ok {
		return
	}
	if err := m.outFollower.Poll(); err != nil {
		m.statusText = fmt.Sprintf("output read error: %v", err)
		m.statusColor = "196"
	}

	var content string
	switch {
	case m.outFollower.Path() == "":
		content = fmt.Sprintf("No submit directory reported for job %s.", job.ID)
	case m.outFollower.Missing():
		content = fmt.Sprintf("Waiting for output of job %s at %s...", job.ID, m.outFollower.Path())
	default:
		content = strings.Join(m.outFollower.Tail(0), "\n")
	}
	updateViewportContent(&m.vpOut, content, &m.outContentCache, m.follow)
}

func (m *model) armCancelConfirm(jobID string) {
	m.cancelConfirm = true
	m.cancelConfirmJobID = jobID
	m.lock.acquire()
	m.statusText = fmt.Sprintf("cancel %s? [y/N]", jobID)
	m.statusColor = "220"
}

func (m *model) clearCancelConfirm() {
	if m.cancelConfirm {
		m.lock.release()
	}
	m.cancelConfirm = false
	m.cancelConfirmJobID = ""
}

func (m *model) handleCancelConfirmKey(key string) (tea.Cmd, bool) {
	switch key {
	case "y", "Y", "enter":
		jobID := m.cancelConfirmJobID
		m.clearCancelConfirm()
		m.statusText = fmt.Sprintf("cancelling %s...", jobID)
		m.statusColor = "220"
		return m.cancelCmd(jobID), true
	case "n", "N", "esc", "c":
		jobID := m.cancelConfirmJobID
		m.clearCancelConfirm()
		m.statusText = fmt.Sprintf("cancel aborted for %s", jobID)
		m.statusColor = "244"
		return nil, true
	default:
		m.statusText = "cancel pending: press y to confirm or n/esc to abort"
		m.statusColor = "220"
		return nil, true
	}
}

func (m *model) handleCancelResult(msg cancelResultMsg) {
	switch {
	case msg.err == nil:
		m.statusText = fmt.Sprintf("cancelled %s", msg.jobID)
		m.statusColor = "42"
		m.syncJobs()
	case errors.Is(msg.err, cancel.ErrAlreadyInFlight), errors.Is(msg.err, cancel.ErrClosed):
		// repeated keypress or teardown; nothing to tell the user
	default:
		m.statusText = msg.err.Error()
		m.statusColor = "196"
	}
}

func padOrTrimToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) > width {
		s = ansi.Truncate(s, width, "")
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func centerOverlay(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		return base
	}

	baseLines := strings.Split(base, "\n")
	if len(baseLines) > height {
		baseLines = baseLines[:height]
	} else if len(baseLines) < height {
		baseLines = append(baseLines, make([]string, height-len(baseLines))...)
	}
	for i := range baseLines {
		baseLines[i] = padOrTrimToWidth(baseLines[i], width)
	}

	overlayLines := strings.Split(overlay, "\n")
	if len(overlayLines) > height {
		overlayLines = overlayLines[:height]
	}
	top := max(0, (height-len(overlayLines))/2)

	for i, line := range overlayLines {
		if top+i >= len(baseLines) {
			break
		}
		if lipgloss.Width(line) > width {
			line = ansi.Truncate(line, width, "")
		}
		left := max(0, (width-lipgloss.Width(line))/2)
		baseLine := baseLines[top+i]
		prefix := ansi.Cut(baseLine, 0, left)
		suffixStart := left + lipgloss.Width(line)
		suffix := ""
		if suffixStart < width {
			suffix = ansi.Cut(baseLine, suffixStart, width)
		}
		baseLines[top+i] = padOrTrimToWidth(prefix+line+suffix, width)
	}

	return strings.Join(baseLines, "\n")
}

func (m model) renderCancelModal(base string) string {
	if m.width <= 0 || m.height <= 0 {
		return base
	}

	modalWidth := min(68, max(40, m.width-8))
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Render("Cancel Job")
	message := fmt.Sprintf("Send cancel request for job %s?", m.cancelConfirmJobID)
	if job, ok := m.store.Get(m.cancelConfirmJobID); ok {
		message = fmt.Sprintf("Send cancel request for job %s (%s)?", job.ID, job.Name)
	}
	hint := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render("[y/enter] confirm    [n/esc] abort")

	body := strings.Join([]string{title, "", message, "", hint}, "\n")
	modal := lipgloss.NewStyle().
		Width(modalWidth).
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("214")).
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255")).
		Render(body)

	dimmed := lipgloss.NewStyle().Faint(true).Render(base)
	return centerOverlay(dimmed, modal, m.width, m.height)
}

func isScrollKey(k string) bool {
	switch k {
	case "up", "down", "pgup", "pgdown", "home", "end", "u", "d", "k", "j", "g", "G":
		return true
	default:
		return false
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		footerHeight := 3
		bodyHeight := max(8, m.height-headerHeight-footerHeight)
		jobsHeight := max(5, bodyHeight/2)
		outHeight := max(4, bodyHeight-jobsHeight-4)

		if !m.vpReady {
			m.vpJobs = viewport.New(max(20, m.width-4), jobsHeight)
			m.vpOut = viewport.New(max(20, m.width-4), outHeight)
			m.vpReady = true
		} else {
			m.vpJobs.Width = max(20, m.width-4)
			m.vpJobs.Height = jobsHeight
			m.vpOut.Width = max(20, m.width-4)
			m.vpOut.Height = outHeight
		}
		m.outContentCache = "\x00"

	case tickMsg:
		m.syncJobs()
		m.pollOutput()
		cmds = append(cmds, waitForTick())

	case spinner.TickMsg:
		if m.store.Loading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case cancelResultMsg:
		m.handleCancelResult(msg)

	case refreshResultMsg:
		if msg.err == nil {
			m.statusText = fmt.Sprintf("jobs refreshed at %s", time.Now().Format("15:04:05"))
			m.statusColor = "42"
			m.syncJobs()
		} else if !errors.Is(msg.err, context.Canceled) {
			m.statusText = msg.err.Error()
			m.statusColor = "196"
		}

	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}

		if m.cancelConfirm {
			if cmd, consumed := m.handleCancelConfirmKey(key); consumed {
				if cmd != nil {
					cmds = append(cmds, cmd)
				}
				break
			}
		}

		switch key {
		case "q":
			return m, tea.Quit
		case "r":
			cmds = append(cmds, m.refreshCmd())
		case "f":
			m.follow = !m.follow
			if m.follow && m.vpReady {
				m.vpOut.GotoBottom()
			}
		case "tab", "shift+tab":
			m.focusArea = 1 - m.focusArea
		case "up", "k":
			if m.focusArea == 0 && m.selectedIdx > 0 {
				m.selectedIdx--
				m.selectedID = m.jobs[m.selectedIdx].ID
				m.switchToJob(m.jobs[m.selectedIdx])
			}
		case "down", "j":
			if m.focusArea == 0 && m.selectedIdx < len(m.jobs)-1 {
				m.selectedIdx++
				m.selectedID = m.jobs[m.selectedIdx].ID
				m.switchToJob(m.jobs[m.selectedIdx])
			}
		case "c":
			job, ok := m.selectedJob()
			if !ok {
				break
			}
			if m.canceller.IsInFlight(job.ID) {
				break
			}
			if !job.State.IsActive() {
				m.statusText = "cancel only works for RUNNING/PENDING jobs"
				m.statusColor = "220"
				break
			}
			m.armCancelConfirm(job.ID)
		}

		if m.vpReady && m.focusArea == 1 {
			m.vpOut, _ = m.vpOut.Update(msg)
			if isScrollKey(key) {
				m.follow = m.vpOut.AtBottom()
			}
		}
	}

	m.renderJobsViewport()
	return m, tea.Batch(cmds...)
}

func jobRow(marker, id, name, state, elapsed, requested, pct, bar, cpus, nodes, dir string) string {
	return fmt.Sprintf("%-2s %-10s %-*s %s %-14s %-14s %s %s %5s %5s  %s",
		marker, id, nameWidth, name, state, elapsed, requested, pct, bar, cpus, nodes, dir)
}

func (m *model) renderJobsViewport() {
	if !m.vpReady {
		return
	}
	if len(m.jobs) == 0 {
		if m.store.Loading() {
			m.vpJobs.SetContent(m.spinner.View() + " Loading jobs...")
		} else {
			m.vpJobs.SetContent("No jobs. Press [r] to refresh.")
		}
		return
	}

	rows := []string{jobRow("", "JOB ID", "NAME", fmt.Sprintf("%-11s", "STATE"), "ELAPSED", "REQUESTED",
		fmt.Sprintf("%7s", "USED"), strings.Repeat(" ", barWidth), "CPUS", "NODES", "DIRECTORY")}
	for i, j := range m.jobs {
		marker := " "
		if i == m.selectedIdx {
			marker = ">"
		}
		name := j.Name
		if len(name) > nameWidth {
			name = name[:nameWidth-3] + "..."
		}

		stateText := string(j.State)
		if m.canceller.IsInFlight(j.ID) {
			stateText = "cancelling…"
		}
		state := lipgloss.NewStyle().Foreground(getJobColor(j.State)).Render(fmt.Sprintf("%-11s", stateText))

		pct, tier := utilization.FromText(j.Elapsed, j.Requested)
		pctText := lipgloss.NewStyle().Foreground(tierColor(tier)).Render(fmt.Sprintf("%6.2f%%", pct))
		bar := m.bars[tier].ViewAs(pct / 100)

		rows = append(rows, jobRow(marker, j.ID, name, state, duration.Display(j.Elapsed), duration.Display(j.Requested),
			pctText, bar, fmt.Sprint(j.CPUs), fmt.Sprint(j.Nodes), j.DisplayDirectory()))
	}
	m.vpJobs.SetContent(strings.Join(rows, "\n"))
}

func (m model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")).Render("jobwatch")
	header := title + "  " + m.subtitle

	if errText := m.store.Err(); errText != "" {
		header += "  " + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(errText)
	}

	if !m.vpReady {
		return header + "\n\nInitializing..."
	}

	jobsBorder := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	outBorder := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if m.focusArea == 0 {
		jobsBorder = jobsBorder.BorderForeground(lipgloss.Color("69"))
		outBorder = outBorder.BorderForeground(lipgloss.Color("240"))
	} else {
		jobsBorder = jobsBorder.BorderForeground(lipgloss.Color("240"))
		outBorder = outBorder.BorderForeground(lipgloss.Color("69"))
	}

	jobInfo := "No selection"
	if job, ok := m.selectedJob(); ok {
		state := lipgloss.NewStyle().Foreground(getJobColor(job.State)).Render(string(job.State))
		jobInfo = fmt.Sprintf("Job %s  %s  %s  cpus:%d nodes:%d", job.ID, state, job.DisplayDirectory(), job.CPUs, job.Nodes)
		if status, ok := m.canceller.Status(job.ID); ok {
			jobInfo += "  cancel:" + status.String()
		}
	}

	follow := "ON"
	followColor := lipgloss.Color("42")
	if !m.follow {
		follow = "PAUSED"
		followColor = lipgloss.Color("220")
	}
	statusLine := lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Render(
		fmt.Sprintf("Focus:%s  Follow:%s  Jobs:%d", []string{"jobs", "output"}[m.focusArea], lipgloss.NewStyle().Foreground(followColor).Render(follow), len(m.jobs)),
	)
	actions := "[j/k] select  [tab] focus  [f] follow  [c] cancel (confirm)  [r] refresh  [q] quit"
	statusMsg := ""
	if m.statusText != "" {
		statusMsg = lipgloss.NewStyle().Foreground(lipgloss.Color(m.statusColor)).Render(m.statusText)
	}

	base := strings.Join([]string{
		header,
		jobInfo,
		jobsBorder.Render(m.vpJobs.View()),
		outBorder.Render(m.vpOut.View()),
		statusLine,
		actions,
		statusMsg,
	}, "\n")

	if m.cancelConfirm {
		return m.renderCancelModal(base)
	}
	return base
}
