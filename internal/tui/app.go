// Package tui implements the terminal status dashboard: a thin bubbletea
// client that polls a running octobot daemon's GET /healthz endpoint and
// renders queue depth and clone-lease pressure per repository. It has no
// mutating surface — the admin API that could pause queues or evict leases
// lives in a separate service — so this view is read-only.
package tui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HealthSnapshot mirrors internal/gateway.HealthSnapshot's JSON shape. It is
// redeclared rather than imported so the TUI only depends on the wire
// contract, not the gateway package's internals.
type HealthSnapshot struct {
	Status      string         `json:"status"`
	UptimeSecs  float64        `json:"uptime_seconds"`
	QueueDepth  map[string]int `json:"queue_depth"`
	LeasesInUse map[string]int `json:"leases_in_use"`
}

// App is the root bubbletea model.
type App struct {
	baseURL  string
	client   *http.Client
	width    int
	height   int
	snap     HealthSnapshot
	lastPoll time.Time
	err      error
}

// NewApp builds an App polling the daemon at baseURL (e.g. http://127.0.0.1:8080).
func NewApp(baseURL string) *App {
	return &App{baseURL: baseURL, client: &http.Client{Timeout: 5 * time.Second}}
}

// Run starts the bubbletea program.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type polledMsg struct {
	snap HealthSnapshot
	err  error
}

func (a *App) pollCmd() tea.Cmd {
	return func() tea.Msg {
		resp, err := a.client.Get(a.baseURL + "/healthz")
		if err != nil {
			return polledMsg{err: err}
		}
		defer resp.Body.Close()
		var snap HealthSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return polledMsg{err: err}
		}
		return polledMsg{snap: snap}
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.pollCmd()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "r":
			return a, a.pollCmd()
		}
	case polledMsg:
		a.lastPoll = time.Now()
		a.err = msg.err
		if msg.err == nil {
			a.snap = msg.snap
		}
		return a, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return a.pollCmd()() })
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	status := okBadgeStyle.Render(" connected ")
	if a.err != nil {
		status = downBadgeStyle.Render(" unreachable ")
	}

	header := lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(line).
		Width(a.width).
		Padding(0, 1).
		Render(lipgloss.JoinHorizontal(lipgloss.Left,
			titleStyle.Render("octobot status"),
			"  ",
			dimStyle.Render(a.baseURL),
			"  ",
			status,
		))

	var body string
	if a.err != nil {
		body = dimStyle.Render(fmt.Sprintf("error polling %s: %v", a.baseURL, a.err))
	} else {
		body = a.renderQueues()
	}

	updated := "never"
	if !a.lastPoll.IsZero() {
		updated = a.lastPoll.Format("15:04:05")
	}
	footer := lipgloss.NewStyle().
		Width(a.width).
		Padding(0, 1).
		Render(lipgloss.JoinHorizontal(lipgloss.Left,
			keycapStyle.Render("r"), " ", dimStyle.Render("refresh"),
			"   ",
			keycapStyle.Render("q"), " ", dimStyle.Render("quit"),
			"   ",
			dimStyle.Render("updated "+updated),
			"   ",
			dimStyle.Render(fmt.Sprintf("uptime %.0fs", a.snap.UptimeSecs)),
		))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (a *App) renderQueues() string {
	repos := make(map[string]struct{})
	for k := range a.snap.QueueDepth {
		repos[k] = struct{}{}
	}
	for k := range a.snap.LeasesInUse {
		repos[k] = struct{}{}
	}
	if len(repos) == 0 {
		return panelStyle.Width(max(20, a.width-2)).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				panelHeaderStyle.Render("Repositories"),
				dimStyle.Render("No active queues or leases."),
			),
		)
	}

	names := make([]string, 0, len(repos))
	for k := range repos {
		names = append(names, k)
	}
	sort.Strings(names)

	rows := ""
	for _, name := range names {
		depth := a.snap.QueueDepth[name]
		leases := a.snap.LeasesInUse[name]
		badge := okBadgeStyle.Render(" idle ")
		if depth > 0 {
			badge = busyBadgeStyle.Render(fmt.Sprintf(" %d queued ", depth))
		}
		row := lipgloss.JoinHorizontal(lipgloss.Left,
			lipgloss.NewStyle().Width(40).Foreground(ink).Render(name),
			lipgloss.NewStyle().Width(16).Render(badge),
			dimStyle.Render(fmt.Sprintf("leases in use: %d", leases)),
		)
		rows += row + "\n"
	}

	return panelStyle.Width(max(20, a.width-2)).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			panelHeaderStyle.Render("Repositories"),
			rows,
		),
	)
}
