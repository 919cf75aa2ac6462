package client

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"agora/internal/models"
	"agora/internal/router"
	"agora/internal/utils"
)

const messagePageSize = 10

// messagesView is the direct-message screen: a roster on the left, the
// selected conversation on the right. History loads in pages of ten;
// sent messages show immediately and are reconciled when the server echo
// comes back under the same message id.
type messagesView struct {
	c *Client

	users   *tview.List
	history *tview.TextView
	input   *tview.InputField
	layout  *tview.Flex

	peer    models.RosterEntry
	msgs    []models.PrivateMessage
	offset  int
	haveAll bool
}

func newMessagesView(c *Client) *messagesView { return &messagesView{c: c} }

func (v *messagesView) Render() (router.Fragment, error) {
	theme := v.c.UI.Theme

	v.users = tview.NewList().ShowSecondaryText(false)
	v.users.SetBorder(true)
	v.users.SetTitle(" Users ")
	v.users.SetTitleColor(theme.GetColor("primary"))
	v.users.SetBorderColor(theme.GetColor("border"))

	v.history = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	v.history.SetBorder(true)
	v.history.SetTitle(" Conversation ")
	v.history.SetTitleColor(theme.GetColor("primary"))
	v.history.SetBorderColor(theme.GetColor("border"))

	v.input = tview.NewInputField().SetLabel("> ")
	v.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		v.send()
	})

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.history, 0, 1, false).
		AddItem(v.input, 1, 0, false)

	v.layout = tview.NewFlex().
		AddItem(v.users, 28, 0, true).
		AddItem(right, 0, 1, false)

	v.layout.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyEscape:
			v.c.Router.Navigate("/homepage")
			return nil
		case tcell.KeyCtrlU:
			v.loadOlder()
			return nil
		case tcell.KeyTab:
			v.cycleFocus()
			return nil
		}
		return ev
	})

	return router.Fragment{Name: "messages", Title: "Messages", Content: v.layout}, nil
}

func (v *messagesView) PostRender() {
	v.c.resetListeners()
	v.c.markMessagesRead()
	v.c.setRosterListener(v.refreshUsers)
	v.c.setMessageListener(v.onMessage)

	v.refreshUsers()
	v.c.Channel.Send(models.Frame{Type: models.FrameRequestUserStatus})
}

func (v *messagesView) cycleFocus() {
	if v.users.HasFocus() {
		v.c.UI.App.SetFocus(v.input)
	} else {
		v.c.UI.App.SetFocus(v.users)
	}
}

func (v *messagesView) refreshUsers() {
	sess, _ := v.c.Session.Current()
	current := v.users.GetCurrentItem()

	v.users.Clear()
	for _, e := range v.c.Roster.SortedView(sess.UserID) {
		entry := e
		marker := "○ "
		if entry.IsOnline {
			marker = "● "
		}
		v.users.AddItem(marker+entry.Username, "", 0, func() {
			v.selectPeer(entry)
		})
	}
	if current >= 0 && current < v.users.GetItemCount() {
		v.users.SetCurrentItem(current)
	}
}

func (v *messagesView) selectPeer(entry models.RosterEntry) {
	v.peer = entry
	v.msgs = nil
	v.offset = 0
	v.haveAll = false
	v.c.setActivePeer(entry.UserID)
	v.history.SetTitle(fmt.Sprintf(" %s ", entry.Username))

	go func() {
		page, err := v.c.API.FetchMessages(context.Background(), entry.UserID, messagePageSize, 0)
		if err != nil {
			v.c.log.Warn("fetch messages failed", zap.String("peer", entry.UserID), zap.Error(err))
			return
		}
		v.c.UI.QueueUpdate(func() {
			if v.peer.UserID != entry.UserID {
				return
			}
			v.msgs = ascending(page)
			v.offset = len(page)
			v.haveAll = len(page) < messagePageSize
			v.redraw()
			v.c.UI.App.SetFocus(v.input)
		})
	}()
}

// loadOlder fetches the next history page and prepends it. Throttled by
// haveAll so scrolling past the first message stops hitting the backend.
func (v *messagesView) loadOlder() {
	if v.peer.UserID == "" || v.haveAll {
		return
	}
	peerID := v.peer.UserID
	offset := v.offset

	go func() {
		page, err := v.c.API.FetchMessages(context.Background(), peerID, messagePageSize, offset)
		if err != nil {
			v.c.log.Warn("fetch older messages failed", zap.String("peer", peerID), zap.Error(err))
			return
		}
		v.c.UI.QueueUpdate(func() {
			if v.peer.UserID != peerID {
				return
			}
			v.msgs = append(ascending(page), v.msgs...)
			v.offset += len(page)
			v.haveAll = len(page) < messagePageSize
			v.redraw()
		})
	}()
}

func (v *messagesView) send() {
	text := v.input.GetText()
	if text == "" || v.peer.UserID == "" {
		return
	}
	if err := v.c.SendPrivateMessage(v.peer.UserID, text); err != nil {
		v.c.UI.ShowNotice("Send failed: "+err.Error(), 4*time.Second)
		return
	}
	v.input.SetText("")
}

// onMessage receives both directions of the active conversation plus
// authoritative echoes of our own sends.
func (v *messagesView) onMessage(pm models.PrivateMessage, replaced bool) {
	sess, _ := v.c.Session.Current()
	peerOf := pm.SenderID
	if pm.SenderID == sess.UserID {
		peerOf = pm.ReceiverID
	}
	if peerOf != v.peer.UserID {
		return
	}

	if replaced {
		for i := range v.msgs {
			if v.msgs[i].MessageID == pm.MessageID {
				v.msgs[i] = pm
				v.redraw()
				return
			}
		}
	}
	v.msgs = append(v.msgs, pm)
	v.redraw()
}

func (v *messagesView) redraw() {
	sess, _ := v.c.Session.Current()

	v.history.Clear()
	for _, m := range v.msgs {
		color := "green"
		name := m.SenderName
		if m.SenderID == sess.UserID {
			color = "aqua"
			name = "you"
		}
		fmt.Fprintf(v.history, "[%s]%s[-] [gray](%s)[-]: %s\n",
			color, tview.Escape(name), utils.FormatPrettyTime(m.Timestamp), tview.Escape(m.Content))
	}
	v.history.ScrollToEnd()
}

// ascending orders a history page oldest first for display; the backend
// serves pages newest first.
func ascending(page []models.PrivateMessage) []models.PrivateMessage {
	out := make([]models.PrivateMessage, len(page))
	copy(out, page)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
