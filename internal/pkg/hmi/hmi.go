// Package hmi is a terminal dashboard for a running simulation.
package hmi

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell"
	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/asset"
	"github.com/ohowland/powersim/internal/pkg/metrics"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/rivo/tview"
)

const logo = `
 ____                        ____  _
|  _ \ _____      _____ _ __/ ___|(_)_ __ ___
| |_) / _ \ \ /\ / / _ \ '__\___ \| | '_ ' _ \
|  __/ (_) \ V  V /  __/ |   ___) | | | | | | |
|_|   \___/ \_/\_/ \___|_|  |____/|_|_| |_| |_|
`

var header = []string{"ID", "Label", "Kind", "State", "Detail"}

// Controls are the operator actions bound to keys.
type Controls interface {
	SetGridDown(bool)
	GridDown() bool
	ClearAlarm(id string) (asset.Component, error)
	Snapshot() sim.State
}

type Dashboard struct {
	app     *tview.Application
	pages   *tview.Pages
	table   *tview.Table
	summary *tview.TextView
	alarms  *tview.TextView
	ctl     Controls
	pid     uuid.UUID
	status  <-chan msg.Msg
	events  <-chan msg.Msg
}

func New(ctl Controls, system msg.Publisher) (*Dashboard, error) {
	pid := uuid.New()
	status, err := system.Subscribe(pid, msg.Status)
	if err != nil {
		return nil, err
	}
	events, err := system.Subscribe(pid, msg.Alarm)
	if err != nil {
		system.Unsubscribe(pid)
		return nil, err
	}

	d := &Dashboard{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		table:   tview.NewTable().SetFixed(1, 0),
		summary: tview.NewTextView().SetDynamicColors(true),
		alarms:  tview.NewTextView().SetDynamicColors(true),
		ctl:     ctl,
		pid:     pid,
		status:  status,
		events:  events,
	}
	d.table.SetBorder(true).SetTitle(" Components ")
	d.alarms.SetBorder(true).SetTitle(" Alarms ")
	d.summary.SetBorder(true).SetTitle(" Site ")

	overview := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.summary, 4, 0, false).
		AddItem(d.table, 0, 3, true).
		AddItem(d.alarms, 0, 1, false).
		AddItem(tview.NewTextView().SetText(" g: toggle grid   c: clear alarms   q: quit"), 1, 0, false)

	d.pages.AddPage("Splash", splash(d.pages), true, true)
	d.pages.AddPage("Overview", overview, true, false)
	d.app.SetRoot(d.pages, true).SetInputCapture(d.onKey)
	d.render(ctl.Snapshot())
	return d, nil
}

func splash(pages *tview.Pages) tview.Primitive {
	lines := strings.Split(logo, "\n")
	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}
	logoBox := tview.NewTextView().
		SetTextColor(tcell.ColorBlue).
		SetDoneFunc(func(key tcell.Key) {
			pages.SwitchToPage("Overview")
		})
	fmt.Fprint(logoBox, logo)

	frame := tview.NewFrame(tview.NewBox()).
		SetBorders(0, 0, 0, 0, 0, 0).
		AddText("Power Distribution Simulator", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("press enter", true, tview.AlignCenter, tcell.ColorDarkMagenta)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 5, false).
		AddItem(tview.NewFlex().
			AddItem(tview.NewBox(), 0, 1, false).
			AddItem(logoBox, width, 1, true).
			AddItem(tview.NewBox(), 0, 1, false), len(lines), 1, true).
		AddItem(frame, 0, 10, false)
}

func (d *Dashboard) onKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() != tcell.KeyRune {
		return ev
	}
	switch ev.Rune() {
	case 'g':
		d.ctl.SetGridDown(!d.ctl.GridDown())
	case 'c':
		for _, c := range d.ctl.Snapshot().Components {
			if c.AlarmActive {
				d.ctl.ClearAlarm(c.ID)
			}
		}
	case 'q':
		d.app.Stop()
	default:
		return ev
	}
	return nil
}

// Run blocks until the user quits or ctx is done.
func (d *Dashboard) Run(ctx context.Context) error {
	go func() {
		for {
			select {
			case m, ok := <-d.status:
				if !ok {
					return
				}
				if s, ok := m.Payload().(sim.State); ok {
					d.app.QueueUpdateDraw(func() { d.render(s) })
				}
			case m, ok := <-d.events:
				if !ok {
					return
				}
				if ev, ok := m.Payload().(sim.Event); ok {
					d.app.QueueUpdateDraw(func() { fmt.Fprintln(d.alarms, alarmLine(ev)) })
				}
			case <-ctx.Done():
				d.app.Stop()
				return
			}
		}
	}()
	return d.app.Run()
}

func (d *Dashboard) render(s sim.State) {
	d.summary.SetText(summaryText(s))
	for col, h := range header {
		d.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, row := range rows(s.Components) {
		color := stateColor(s.Components[i].State)
		for col, text := range row {
			cell := tview.NewTableCell(text)
			if col == 3 {
				cell.SetTextColor(color)
			}
			d.table.SetCell(i+1, col, cell)
		}
	}
	for r := d.table.GetRowCount() - 1; r > len(s.Components); r-- {
		d.table.RemoveRow(r)
	}
}

func summaryText(s sim.State) string {
	grid := "[green]" + metrics.GridOptimal
	if s.GridDown {
		grid = "[red]" + metrics.GridCritical
	}
	return fmt.Sprintf(" tick %d   grid %s[white]   racks %d/%d   health %d%%   load %.1f kW",
		s.Tick, grid, s.Metrics.ActiveRacks, s.Metrics.TotalRacks, s.Metrics.HealthPct, s.Metrics.TotalLoadKW)
}

func rows(components []asset.Component) [][]string {
	out := make([][]string, 0, len(components))
	for _, c := range components {
		out = append(out, []string{c.ID, c.Label, kindName(c), string(c.State), detail(c)})
	}
	return out
}

func kindName(c asset.Component) string {
	if c.Variant != asset.NoVariant {
		return fmt.Sprintf("%s/%s", c.Kind, c.Variant)
	}
	return string(c.Kind)
}

func detail(c asset.Component) string {
	var parts []string
	switch c.Kind {
	case asset.UPS:
		parts = append(parts, fmt.Sprintf("battery %.1f%%", c.BatteryPct))
	case asset.VoltageSwitch:
		if c.ActiveInputID != "" {
			parts = append(parts, "on "+c.ActiveInputID)
		}
	case asset.Rack:
		if c.State == asset.Rebooting {
			parts = append(parts, fmt.Sprintf("reboot %.0f%%", c.RebootProgressPct))
		}
	}
	if c.Faulty {
		parts = append(parts, "faulted")
	}
	if c.AlarmActive {
		parts = append(parts, "ALARM")
	}
	return strings.Join(parts, ", ")
}

func stateColor(s asset.State) tcell.Color {
	switch s {
	case asset.Normal, asset.Running:
		return tcell.ColorGreen
	case asset.Warning, asset.Starting, asset.Rebooting:
		return tcell.ColorYellow
	case asset.Fault:
		return tcell.ColorRed
	}
	return tcell.ColorGray
}

func alarmLine(ev sim.Event) string {
	return fmt.Sprintf("[red]%8d[white] %s %s", ev.Tick, ev.Kind, ev.Label)
}
