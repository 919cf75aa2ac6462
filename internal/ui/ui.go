// Package ui is the terminal render sink. It consumes the fragments views
// produce and owns the tview application; nothing in here decides what a
// screen contains.
package ui

import (
	"time"

	"github.com/rivo/tview"
	"go.uber.org/zap"

	"agora/internal/router"
)

type UI struct {
	App   *tview.Application
	Pages *tview.Pages
	Theme *Theme

	log *zap.Logger
}

func NewUI(theme *Theme, log *zap.Logger) *UI {
	ui := &UI{
		App:   tview.NewApplication().EnableMouse(true),
		Pages: tview.NewPages(),
		Theme: theme,
		log:   log,
	}
	ui.App.SetRoot(ui.Pages, true)
	return ui
}

// Install puts a rendered fragment on screen. The router hands fragments
// over with opaque content; anything that is not a tview primitive is a
// programming error in the view, not a reason to crash the client.
func (ui *UI) Install(f router.Fragment) {
	prim, ok := f.Content.(tview.Primitive)
	if !ok {
		ui.log.Error("fragment content is not a terminal primitive", zap.String("name", f.Name))
		return
	}
	if ui.Pages.HasPage(f.Name) {
		ui.Pages.RemovePage(f.Name)
	}
	ui.Pages.AddPage(f.Name, prim, true, true)
	ui.Pages.SwitchToPage(f.Name)
	ui.App.SetFocus(prim)
}

func (ui *UI) Run() error {
	return ui.App.Run()
}

func (ui *UI) Stop() {
	ui.App.Stop()
}

// QueueUpdate schedules f on the draw goroutine. Channel handlers use this
// to touch widgets safely.
func (ui *UI) QueueUpdate(f func()) {
	ui.App.QueueUpdateDraw(f)
}

// ShowNotice pops a passive, self-dismissing notification. Used for things
// like exhausted reconnects and background private messages; it never
// blocks the current screen.
func (ui *UI) ShowNotice(message string, duration time.Duration) {
	modal := tview.NewModal().
		SetText(message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			ui.Pages.RemovePage("notice")
		})
	modal.SetBackgroundColor(ui.Theme.GetColor("background"))

	ui.Pages.AddPage("notice", modal, true, true)
	ui.App.SetFocus(modal)

	if duration > 0 {
		go func() {
			time.Sleep(duration)
			ui.App.QueueUpdateDraw(func() {
				ui.Pages.RemovePage("notice")
			})
		}()
	}
}
