// Package tui is a terminal chat client for the messaging daemon.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mudassir044/aupair-messaging/internal/client"
	"github.com/rivo/tview"
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	client    *client.Client
	stream    *client.Stream
	convList  *tview.Table
	msgView   *tview.TextView
	composer  *tview.InputField
	statusBar *tview.TextView
	ctx       context.Context
	cancel    context.CancelFunc

	mu          sync.Mutex
	convs       []client.Conversation
	active      string // partner user id of the open thread
	activeName  string
	messages    []client.Message
	flash       string
	flashExpiry time.Time
}

// NewApp creates the TUI application.
func NewApp(c *client.Client) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		client:    c,
		convList:  tview.NewTable(),
		msgView:   tview.NewTextView(),
		composer:  tview.NewInputField(),
		statusBar: tview.NewTextView(),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.setupWidgets()
	a.setupLayout()
	return a
}

func (a *App) setupWidgets() {
	a.convList.SetSelectable(true, false)
	a.convList.SetBorder(true).SetTitle(" conversations ")
	a.convList.SetSelectedFunc(func(row, col int) {
		a.mu.Lock()
		var partnerID, partnerName string
		if row >= 0 && row < len(a.convs) {
			partnerID = a.convs[row].PartnerID
			partnerName = a.convs[row].PartnerName
		}
		a.mu.Unlock()
		if partnerID != "" {
			a.openThread(partnerID, partnerName)
		}
	})

	a.msgView.SetDynamicColors(true).SetScrollable(true)
	a.msgView.SetBorder(true)

	a.composer.SetLabel("> ")
	a.composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.composer.GetText()
		if text == "" {
			return
		}
		a.composer.SetText("")
		a.send(text)
	})

	a.statusBar.SetDynamicColors(true)
	a.statusBar.SetText("[gray]connecting...")
}

func (a *App) setupLayout() {
	thread := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, true)

	a.pages.AddPage("conversations", a.convList, true, true)
	a.pages.AddPage("thread", thread, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()
		if event.Key() == tcell.KeyEscape && currentPage == "thread" {
			a.mu.Lock()
			a.active = ""
			a.mu.Unlock()
			a.pages.SwitchToPage("conversations")
			a.app.SetFocus(a.convList)
			return nil
		}
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		if event.Key() == tcell.KeyRune && event.Rune() == 'q' {
			a.Stop()
			return nil
		}
		return event
	})
}

// Run connects the event stream and starts the UI loop.
func (a *App) Run() error {
	stream, err := a.client.Connect(a.ctx)
	if err != nil {
		return err
	}
	a.stream = stream

	go a.consumeFrames()
	go a.refreshLoop()
	a.loadConversations()

	defer func() { _ = stream.Close() }()
	return a.app.Run()
}

// Stop shuts the TUI down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) openThread(partnerID, partnerName string) {
	go func() {
		msgs, err := a.client.History(a.ctx, partnerID, 1, 100)
		if err != nil {
			a.setFlash("load failed: " + err.Error())
			return
		}
		a.mu.Lock()
		a.active = partnerID
		a.activeName = partnerName
		a.messages = msgs
		a.mu.Unlock()

		a.app.QueueUpdateDraw(func() {
			a.msgView.SetTitle(" " + partnerName + " ")
			a.renderMessages()
			a.pages.SwitchToPage("thread")
			a.app.SetFocus(a.composer)
		})
	}()
}

func (a *App) send(text string) {
	a.mu.Lock()
	partnerID := a.active
	a.mu.Unlock()
	if partnerID == "" {
		return
	}
	go func() {
		msg, err := a.client.Send(a.ctx, partnerID, text)
		if err != nil {
			a.setFlash("send failed: " + err.Error())
			return
		}
		a.mu.Lock()
		a.messages = append(a.messages, *msg)
		a.mu.Unlock()
		a.app.QueueUpdateDraw(a.renderMessages)
	}()
}

func (a *App) consumeFrames() {
	for frame := range a.stream.Frames() {
		switch frame.Type {
		case "new_message":
			a.mu.Lock()
			inActive := frame.SenderID == a.active
			if inActive {
				a.messages = append(a.messages, client.Message{
					ID:         frame.ID,
					SenderID:   frame.SenderID,
					ReceiverID: frame.ReceiverID,
					Content:    frame.Content,
					CreatedAt:  frame.CreatedAt,
				})
			}
			a.mu.Unlock()
			if inActive {
				_ = a.stream.MarkRead(frame.SenderID)
				a.app.QueueUpdateDraw(a.renderMessages)
			} else {
				name := frame.SenderName
				if name == "" {
					name = frame.SenderID
				}
				a.setFlash("new message from " + name)
			}
			a.loadConversations()
		case "user_typing":
			a.mu.Lock()
			isActive := frame.UserID == a.active
			name := a.activeName
			a.mu.Unlock()
			if isActive && frame.Typing {
				a.setFlash(name + " is typing...")
			}
		case "messages_read":
			a.setFlash("messages read")
		case "user_status":
			state := "offline"
			if frame.Online {
				state = "online"
			}
			a.setFlash(frame.UserID + " is " + state)
		}
	}
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.loadConversations()
			a.app.QueueUpdateDraw(a.renderStatus)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) loadConversations() {
	go func() {
		convs, err := a.client.Conversations(a.ctx)
		if err != nil {
			a.setFlash("refresh failed: " + err.Error())
			return
		}
		a.mu.Lock()
		a.convs = convs
		a.mu.Unlock()
		a.app.QueueUpdateDraw(a.renderConversations)
	}()
}

func (a *App) renderConversations() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.convList.Clear()
	for i, conv := range a.convs {
		name := conv.PartnerName
		if conv.UnreadCount > 0 {
			name = fmt.Sprintf("%s (%d)", name, conv.UnreadCount)
		}
		a.convList.SetCell(i, 0, tview.NewTableCell(name).SetExpansion(1))
		a.convList.SetCell(i, 1, tview.NewTableCell(truncate(conv.LastMessage.Content, 40)))
	}
}

func (a *App) renderMessages() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgView.Clear()
	for _, m := range a.messages {
		who := "[yellow]" + m.SenderID + "[-]"
		if m.SenderID != a.active {
			who = "[green]me[-]"
		}
		fmt.Fprintf(a.msgView, "[gray]%s[-] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content)
	}
	a.msgView.ScrollToEnd()
}

func (a *App) renderStatus() {
	a.mu.Lock()
	flash := a.flash
	if time.Now().After(a.flashExpiry) {
		flash = ""
	}
	a.mu.Unlock()
	if flash == "" {
		a.statusBar.SetText("[gray]enter:open  esc:back  q:quit")
		return
	}
	a.statusBar.SetText("[white]" + tview.Escape(flash))
}

func (a *App) setFlash(text string) {
	a.mu.Lock()
	a.flash = text
	a.flashExpiry = time.Now().Add(5 * time.Second)
	a.mu.Unlock()
	a.app.QueueUpdateDraw(a.renderStatus)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
