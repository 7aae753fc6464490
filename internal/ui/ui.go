// Package ui is the fyne desktop host: it lets the user pick a port, start
// and stop acquisition, send commands, watch the live plot and export CSV.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"serial-plotter/internal/acquire"
	"serial-plotter/internal/channel"
	"serial-plotter/internal/config"
	"serial-plotter/internal/export"
	"serial-plotter/internal/monitor"
	"serial-plotter/internal/render"
)

const maxLines = 10000

// AppUI holds all UI state and widgets.
type AppUI struct {
	window       fyne.Window
	mgr          *monitor.Manager
	settings     *config.Config
	settingsPath string
	log          *logrus.Entry

	// Widgets
	portSelect *widget.Select
	baudSelect *widget.Select
	refreshBtn *widget.Button
	startBtn   *widget.Button
	stopBtn    *widget.Button
	exportBtn  *widget.Button
	sendEntry  *widget.Entry
	sendBtn    *widget.Button
	status     *widget.Label
	output     *widget.List
	plot       *plotView

	// State
	mu      sync.Mutex
	lines   []string
	running atomic.Bool
}

// New builds the window content. Call Run to start the background loops.
func New(window fyne.Window, mgr *monitor.Manager, settings *config.Config, settingsPath string, logger *logrus.Entry) *AppUI {
	ui := &AppUI{
		window:       window,
		mgr:          mgr,
		settings:     settings,
		settingsPath: settingsPath,
		log:          logger.WithField("component", "ui"),
	}
	ui.build()
	return ui
}

// Run feeds the transcript view and the plot until ctx is done.
func (ui *AppUI) Run(ctx context.Context) {
	go ui.consumeTranscript(ctx)
	go func() {
		_ = ui.mgr.RunRenderer(ctx, render.SurfaceFunc(ui.draw))
	}()
}

// SessionStopped updates the controls after the worker stops on its own.
// A report for a session already replaced by a newer one is ignored.
func (ui *AppUI) SessionStopped(s acquire.Session, err error) {
	fyne.Do(func() {
		if ui.mgr.Superseded(s) {
			return
		}
		ui.setStoppedState()
		if err != nil {
			dialog.ShowError(fmt.Errorf("serial port %s: %w", s.Config.Port, err), ui.window)
		}
	})
}

func (ui *AppUI) build() {
	// Port selection
	ui.portSelect = widget.NewSelect([]string{}, nil)
	ui.portSelect.PlaceHolder = "Select Port"

	ui.refreshBtn = widget.NewButton("Refresh", func() {
		ui.refreshPorts()
	})
	ui.refreshPorts()

	// Baud rate selection
	rates := make([]string, len(channel.StandardBaudRates))
	for i, r := range channel.StandardBaudRates {
		rates[i] = strconv.Itoa(r)
	}
	ui.baudSelect = widget.NewSelect(rates, nil)
	ui.baudSelect.SetSelected(strconv.Itoa(ui.settings.BaudRate))

	ui.startBtn = widget.NewButton("Start", func() {
		ui.start()
	})
	ui.stopBtn = widget.NewButton("Stop", func() {
		ui.mgr.StopAcquisition()
		ui.setStoppedState()
	})
	ui.stopBtn.Disable()

	ui.exportBtn = widget.NewButton("Save to CSV", func() {
		ui.showExportDialog()
	})

	ui.sendEntry = widget.NewEntry()
	ui.sendEntry.SetPlaceHolder("Send data")
	ui.sendEntry.OnSubmitted = func(string) { ui.send() }
	ui.sendBtn = widget.NewButton("Send", func() {
		ui.send()
	})

	ui.status = widget.NewLabel("Stopped")

	// Output list; the display text is copied outside the lock to avoid
	// deadlock with fyne's re-entrant calls.
	ui.output = widget.NewList(
		func() int {
			ui.mu.Lock()
			defer ui.mu.Unlock()
			return len(ui.lines)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.TextStyle = fyne.TextStyle{Monospace: true}
			return label
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ui.mu.Lock()
			var text string
			if id < len(ui.lines) {
				text = ui.lines[id]
			}
			ui.mu.Unlock()
			obj.(*widget.Label).SetText(text)
		},
	)

	ui.plot = newPlotView()

	// Layout
	portRow := container.NewHBox(
		widget.NewLabel("Port:"),
		ui.portSelect,
		ui.refreshBtn,
		widget.NewLabel("Baud:"),
		ui.baudSelect,
		ui.startBtn,
		ui.stopBtn,
		ui.exportBtn,
	)
	sendRow := container.NewBorder(nil, nil, widget.NewLabel("Send Data:"), ui.sendBtn, ui.sendEntry)
	bottom := container.NewVBox(sendRow, ui.status)

	split := container.NewHSplit(ui.output, ui.plot.content)
	split.SetOffset(0.3)

	content := container.NewBorder(portRow, bottom, nil, nil, split)
	ui.window.SetContent(content)
}

func (ui *AppUI) refreshPorts() {
	ports := channel.ListPorts()
	ui.portSelect.Options = ports
	selected := ports[0]
	for _, p := range ports {
		if p == ui.settings.Port {
			selected = p
		}
	}
	ui.portSelect.SetSelected(selected)
	ui.portSelect.Refresh()
}

func (ui *AppUI) setRunningState() {
	ui.running.Store(true)
	ui.startBtn.Disable()
	ui.stopBtn.Enable()
	ui.portSelect.Disable()
	ui.baudSelect.Disable()
	ui.refreshBtn.Disable()
}

func (ui *AppUI) setStoppedState() {
	ui.running.Store(false)
	ui.startBtn.Enable()
	ui.stopBtn.Disable()
	ui.portSelect.Enable()
	ui.baudSelect.Enable()
	ui.refreshBtn.Enable()
}

func (ui *AppUI) start() {
	portName := ui.portSelect.Selected
	if portName == "" {
		dialog.ShowError(errors.New("no port selected"), ui.window)
		return
	}

	baudRate, err := strconv.Atoi(ui.baudSelect.Selected)
	if err != nil {
		dialog.ShowError(fmt.Errorf("invalid baud rate: %s", ui.baudSelect.Selected), ui.window)
		return
	}

	cfg := channel.Config{Port: portName, BaudRate: baudRate}
	if err := ui.mgr.StartAcquisition(cfg); err != nil {
		if errors.Is(err, acquire.ErrAlreadyRunning) {
			return
		}
		// The failure is already in the transcript.
		ui.log.WithError(err).Error("start acquisition")
		return
	}
	ui.setRunningState()

	ui.settings.Port = portName
	ui.settings.BaudRate = baudRate
	if ui.settingsPath != "" {
		if err := ui.settings.Save(ui.settingsPath); err != nil {
			ui.log.WithError(err).Warn("save settings")
		}
	}
}

func (ui *AppUI) send() {
	text := ui.sendEntry.Text
	if text == "" {
		return
	}
	if err := ui.mgr.SendRaw([]byte(text)); err != nil {
		ui.appendLines([]string{fmt.Sprintf("Error: %v", err)})
		return
	}
	ui.sendEntry.SetText("")
}

func (ui *AppUI) consumeTranscript(ctx context.Context) {
	for {
		var batch []string
		select {
		case <-ctx.Done():
			return
		case line := <-ui.mgr.Transcript():
			batch = append(batch, line)
		}
		// Drain whatever else is queued so one refresh covers the batch.
	drain:
		for len(batch) < 512 {
			select {
			case line := <-ui.mgr.Transcript():
				batch = append(batch, line)
			default:
				break drain
			}
		}
		fyne.Do(func() { ui.appendLines(batch) })
	}
}

// appendLines must run on the fyne thread.
func (ui *AppUI) appendLines(batch []string) {
	ui.mu.Lock()
	ui.lines = append(ui.lines, batch...)
	// Bound memory
	if len(ui.lines) > maxLines {
		ui.lines = ui.lines[len(ui.lines)-maxLines:]
	}
	count := len(ui.lines)
	ui.mu.Unlock()

	ui.output.Refresh()
	if count > 0 {
		ui.output.ScrollToBottom()
	}
}

func (ui *AppUI) draw(in render.Instruction) {
	stats := ui.mgr.Stats()
	fyne.Do(func() {
		ui.plot.show(in)
		state := "Stopped"
		if ui.running.Load() {
			state = "Running"
		}
		ui.status.SetText(fmt.Sprintf("%s | window %d | captured %d", state, stats.WindowLen, stats.LogLen))
	})
}

func (ui *AppUI) showExportDialog() {
	if ui.mgr.Stats().LogLen == 0 {
		dialog.ShowInformation("Export", "No data to export.", ui.window)
		return
	}

	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()

		savePath := writer.URI().Path()
		if len(savePath) > 2 && savePath[0] == '/' && savePath[2] == ':' {
			savePath = savePath[1:]
		}

		err = ui.mgr.ExportCSV(savePath)
		switch {
		case errors.Is(err, export.ErrNoData):
			dialog.ShowInformation("Export", "No data to export.", ui.window)
		case err != nil:
			dialog.ShowError(err, ui.window)
		default:
			dialog.ShowInformation("Export", fmt.Sprintf("Exported %d samples to CSV.", ui.mgr.Stats().LogLen), ui.window)
		}
	}, ui.window)
	fd.SetFileName("serial_data.csv")
	fd.Show()
}
