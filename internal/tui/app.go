package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/MR-JLTC/tutorchat/internal/api"
	"github.com/MR-JLTC/tutorchat/internal/bus"
	"github.com/MR-JLTC/tutorchat/internal/chat"
	"github.com/MR-JLTC/tutorchat/internal/session"
	"github.com/MR-JLTC/tutorchat/internal/status"
	"github.com/MR-JLTC/tutorchat/internal/store"
	"github.com/MR-JLTC/tutorchat/internal/tui/keys"
	"github.com/MR-JLTC/tutorchat/internal/tui/model"
	"github.com/MR-JLTC/tutorchat/internal/tui/views"
)

// App is the main TUI application shell. All state lives in the chat
// engine; the app only renders snapshots and forwards user intent.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	engine    *chat.Engine
	api       *api.Client
	sess      *session.Manager
	bus       *bus.Bus
	machine   *status.Machine
	registry  *keys.Registry
	flash     model.Flash
	logger    *zap.Logger
	statusBar *views.StatusBar
	roster    *views.RosterView
	thread    *views.ThreadView
	composer  *views.Composer
	login     *views.LoginView
	ctx       context.Context
	cancel    context.CancelFunc

	activePartner *store.Conversation
}

// NewApp creates the TUI application.
func NewApp(engine *chat.Engine, apiClient *api.Client, sess *session.Manager, b *bus.Bus, machine *status.Machine, logger *zap.Logger, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		engine:    engine,
		api:       apiClient,
		sess:      sess,
		bus:       b,
		machine:   machine,
		registry:  keys.NewRegistry(),
		logger:    logger,
		statusBar: views.NewStatusBar(),
		roster:    views.NewRosterView(),
		thread:    views.NewThreadView(),
		composer:  views.NewComposer(),
		login:     views.NewLoginView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.statusBar.SetConnState(string(machine.Current()))
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("roster", "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { a.refresh() },
	})
	a.registry.AddView("roster", "logout", &keys.Action{
		Rune: 'L', Key: tcell.KeyRune,
		Description: "L:logout", Visible: true,
		Handler: func() { a.logout() },
	})
}

func (a *App) setupCallbacks() {
	a.roster.SetSelectedFunc(func(row, col int) {
		entry := a.roster.Selected()
		switch {
		case entry.Conversation != nil:
			a.openConversation(*entry.Conversation)
		case entry.Contact != nil:
			a.openContact(*entry.Contact)
		}
	})

	a.composer.SetOnSend(func(text string) {
		if err := a.engine.Send(text); err != nil {
			a.flash.Set("Send failed: "+err.Error(), 5*time.Second)
			a.statusBar.SetFlash(a.flash.Get())
			return
		}
		a.composer.SetText("")
	})

	a.login.SetOnLogin(func(email, password, role string) {
		a.login.ShowMessage("Logging in...")
		go a.runLogin(email, password, role)
	})
}

func (a *App) setupLayout() {
	threadFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("roster", a.roster, true, true)
	a.pages.AddPage("thread", threadFlex, true, false)
	a.pages.AddPage("login", a.login, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && currentPage == "thread" {
			a.activePartner = nil
			a.statusBar.SetPresence("")
			a.pages.SwitchToPage("roster")
			a.app.SetFocus(a.roster)
			return nil
		}

		// Text inputs consume all keys while focused.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}
		if currentPage == "login" {
			return event
		}

		// 'i' focuses the composer when reading the thread.
		if currentPage == "thread" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.eventLoop()
	go a.clockLoop()

	if a.sess.Current() == nil {
		a.pages.SwitchToPage("login")
		a.app.SetFocus(a.login.Form())
	} else {
		a.refresh()
	}

	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// eventLoop turns bus events into redraws. The engine has already merged
// the event into its state by the time the kind arrives here.
func (a *App) eventLoop() {
	chatCh, unsubChat := a.bus.Subscribe("chat.", 64)
	connCh, unsubConn := a.bus.Subscribe(bus.KindConnStatusChanged, 16)
	defer unsubChat()
	defer unsubConn()

	for {
		select {
		case evt := <-chatCh:
			a.handleChatEvent(evt)
		case evt := <-connCh:
			change, ok := evt.Payload.(status.StatusChange)
			if !ok {
				continue
			}
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetConnState(string(change.To))
				if change.To == status.AuthRequired {
					a.pages.SwitchToPage("login")
					a.app.SetFocus(a.login.Form())
				}
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) handleChatEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindChatThread:
		a.app.QueueUpdateDraw(func() {
			a.thread.Update(a.engine.Thread().Messages(), a.selfID())
		})
	case bus.KindChatRoster:
		a.app.QueueUpdateDraw(func() {
			a.roster.Update(a.engine.Roster().Entries(), a.engine.Presence().Online)
		})
	case bus.KindChatPresence:
		a.app.QueueUpdateDraw(func() {
			a.roster.Update(a.engine.Roster().Entries(), a.engine.Presence().Online)
			a.renderPresence()
		})
	case bus.KindChatSendFailed:
		f, ok := evt.Payload.(*chat.SendFailure)
		if !ok {
			return
		}
		a.flash.Set("Send failed: "+f.Err.Error(), 5*time.Second)
		a.app.QueueUpdateDraw(func() {
			a.composer.Restore(f.Content)
			a.statusBar.SetFlash(a.flash.Get())
		})
	}
}

// clockLoop refreshes the status bar clock and expires flash messages.
func (a *App) clockLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) selfID() int64 {
	if creds := a.sess.Current(); creds != nil {
		return creds.User.UserID
	}
	return 0
}

func (a *App) refresh() {
	go func() {
		if err := a.engine.Refresh(a.ctx); err != nil {
			a.flash.Set("Refresh failed: "+err.Error(), 5*time.Second)
		}
		a.app.QueueUpdateDraw(func() {
			a.roster.Update(a.engine.Roster().Entries(), a.engine.Presence().Online)
			a.statusBar.SetFlash(a.flash.Get())
		})
	}()
}

func (a *App) openConversation(conv store.Conversation) {
	go func() {
		if err := a.engine.OpenConversation(a.ctx, conv.ID); err != nil {
			a.flash.Set("Load failed: "+err.Error(), 5*time.Second)
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.activePartner = &conv
			a.thread.SetPartnerName(conv.PartnerName)
			a.thread.Update(a.engine.Thread().Messages(), a.selfID())
			a.renderPresence()
			a.pages.SwitchToPage("thread")
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) openContact(contact store.Contact) {
	go func() {
		conv, err := a.engine.OpenContact(a.ctx, contact.UserID)
		if err != nil {
			a.flash.Set("Could not start conversation: "+err.Error(), 5*time.Second)
			a.app.QueueUpdateDraw(func() { a.statusBar.SetFlash(a.flash.Get()) })
			return
		}
		if conv.PartnerName == "" {
			conv.PartnerName = contact.Name
		}
		a.openConversation(*conv)
	}()
}

func (a *App) renderPresence() {
	if a.activePartner == nil {
		a.statusBar.SetPresence("")
		return
	}
	if a.engine.Presence().Online(a.activePartner.PartnerID) {
		a.statusBar.SetPresence("[green]● online[-]")
	} else {
		a.statusBar.SetPresence("[::d]offline[-:-:-]")
	}
}

func (a *App) runLogin(email, password, role string) {
	creds, err := a.api.Login(a.ctx, email, password, role)
	if err != nil {
		a.app.QueueUpdateDraw(func() {
			a.login.ShowMessage("Login failed: " + err.Error())
		})
		return
	}
	if err := a.sess.Set(*creds); err != nil {
		a.app.QueueUpdateDraw(func() {
			a.login.ShowMessage("Could not store session: " + err.Error())
		})
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.login.ClearMessage()
		a.pages.SwitchToPage("roster")
		a.app.SetFocus(a.roster)
	})
	a.refresh()
}

// logout drops the session. Tutors are flagged offline on the backend
// first, best effort, matching the marketplace's logout contract.
func (a *App) logout() {
	go func() {
		if creds := a.sess.Current(); creds != nil && creds.User.Role == session.RoleTutor {
			if err := a.api.SetTutorOnlineStatus(a.ctx, creds.User.UserID, "offline"); err != nil {
				a.logger.Warn("online status update on logout failed", zap.Error(err))
			}
		}
		if err := a.sess.Clear(); err != nil {
			a.logger.Warn("logout failed", zap.Error(err))
		}
		a.app.QueueUpdateDraw(func() {
			a.activePartner = nil
			a.thread.Clear()
			a.composer.SetText("")
			a.statusBar.SetPresence("")
			a.roster.Update(nil, func(int64) bool { return false })
			a.pages.SwitchToPage("login")
			a.app.SetFocus(a.login.Form())
		})
	}()
}
