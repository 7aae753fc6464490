package main

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"serial-plotter/internal/acquire"
	"serial-plotter/internal/ui"
)

func runGUI(ctx context.Context, env *runtimeEnv) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := app.NewWithID("com.github.serial-plotter")
	w := a.NewWindow("Serial Monitor with Plotter")
	w.Resize(fyne.NewSize(1366, 768))

	var appUI *ui.AppUI
	mgr := env.newManager(func(s acquire.Session, err error) {
		if appUI != nil {
			appUI.SessionStopped(s, err)
		}
	})
	defer mgr.Close()

	appUI = ui.New(w, mgr, env.settings, env.settingsPath, env.logger)
	appUI.Run(ctx)
	env.serveMetrics(ctx)

	w.ShowAndRun()
	return nil
}
