package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MR-JLTC/tutorchat/internal/bus"
	"github.com/MR-JLTC/tutorchat/internal/session"
	"github.com/MR-JLTC/tutorchat/internal/store"
	"github.com/MR-JLTC/tutorchat/internal/ws"
)

// Transport is the slice of the connection manager the engine drives.
type Transport interface {
	Channel
	JoinConversation(conversationID int64)
	MarkSeen(conversationID int64)
}

// Directory is the REST surface the engine reads from.
type Directory interface {
	ListConversations(ctx context.Context, selfID int64) ([]store.Conversation, error)
	ListMessages(ctx context.Context, conversationID int64) ([]store.Message, error)
	CreateConversation(ctx context.Context, selfID, targetUserID int64) (*store.Conversation, error)
	ListContacts(ctx context.Context) ([]store.Contact, error)
}

// Engine is the single dispatcher for pushed server events. It fans each
// event into the thread, roster, presence tracker, and the local cache,
// strictly in arrival order, and announces the resulting view changes on
// the bus. All server-driven mutation goes through here.
type Engine struct {
	dir       Directory
	transport Transport
	db        *store.DB
	sess      *session.Manager
	bus       *bus.Bus
	logger    *zap.Logger

	thread   *Thread
	roster   *Roster
	presence *Presence
	outbox   *Outbox

	cancel context.CancelFunc
}

// NewEngine wires the chat components together.
func NewEngine(dir Directory, transport Transport, db *store.DB, sess *session.Manager, b *bus.Bus, logger *zap.Logger) *Engine {
	thread := NewThread()
	return &Engine{
		dir:       dir,
		transport: transport,
		db:        db,
		sess:      sess,
		bus:       b,
		logger:    logger,
		thread:    thread,
		roster:    NewRoster(),
		presence:  NewPresence(),
		outbox:    NewOutbox(transport, thread, b, logger),
	}
}

// Thread exposes the message store for the renderer.
func (e *Engine) Thread() *Thread { return e.thread }

// Roster exposes the conversation list for the renderer.
func (e *Engine) Roster() *Roster { return e.roster }

// Presence exposes the presence tracker for the renderer.
func (e *Engine) Presence() *Presence { return e.presence }

// Start subscribes to pushed server events and session changes.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	serverCh, unsubServer := e.bus.Subscribe("server.", 256)
	sessCh, unsubSess := e.bus.Subscribe("session.", 8)

	go func() {
		defer unsubServer()
		defer unsubSess()
		for {
			select {
			case evt := <-serverCh:
				e.handleServer(ctx, evt)
			case evt := <-sessCh:
				e.handleSession(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the dispatcher.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// Send dispatches a message for the open conversation through the
// optimistic pipeline.
func (e *Engine) Send(content string) error {
	name := ""
	if creds := e.sess.Current(); creds != nil {
		name = creds.User.Name
	}
	return e.outbox.Send(content, name)
}

// Refresh reloads the conversation list and contact placeholders. On
// REST failure it falls back to the local cache so a cold offline start
// still paints a list.
func (e *Engine) Refresh(ctx context.Context) error {
	creds := e.sess.Current()
	if creds == nil {
		return fmt.Errorf("refresh: no active session")
	}
	self := creds.User

	convs, err := e.dir.ListConversations(ctx, self.UserID)
	if err != nil {
		e.logger.Warn("conversation fetch failed, using cache", zap.Error(err))
		cached, cacheErr := e.db.ListConversations(0)
		if cacheErr != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		contacts, _ := e.db.ListContacts()
		e.roster.Load(self, cached, contacts)
		e.publishRoster()
		return nil
	}

	contacts, err := e.dir.ListContacts(ctx)
	if err != nil {
		e.logger.Warn("contact fetch failed, using cache", zap.Error(err))
		contacts, _ = e.db.ListContacts()
	}

	e.roster.Load(self, convs, contacts)
	e.publishRoster()

	for i := range convs {
		if err := e.db.UpsertConversation(&convs[i]); err != nil {
			e.logger.Warn("conversation cache write failed", zap.Error(err))
			break
		}
	}
	if err := e.db.UpsertContacts(contacts); err != nil {
		e.logger.Warn("contact cache write failed", zap.Error(err))
	}
	return nil
}

// OpenConversation loads a conversation's history into the thread, joins
// its update channel, and marks it seen. History comes from REST with a
// cache fallback.
func (e *Engine) OpenConversation(ctx context.Context, conversationID int64) error {
	creds := e.sess.Current()
	if creds == nil {
		return fmt.Errorf("open conversation: no active session")
	}

	history, err := e.dir.ListMessages(ctx, conversationID)
	if err != nil {
		e.logger.Warn("history fetch failed, using cache",
			zap.Int64("conversation_id", conversationID), zap.Error(err))
		cached, cacheErr := e.db.ListMessages(conversationID, 0, 0)
		if cacheErr != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		history = cached
	} else {
		for i := range history {
			if err := e.db.UpsertMessage(&history[i]); err != nil {
				e.logger.Warn("message cache write failed", zap.Error(err))
				break
			}
		}
	}

	e.thread.Open(conversationID, creds.User.UserID, history)
	e.transport.JoinConversation(conversationID)
	e.transport.MarkSeen(conversationID)
	e.publishThread(conversationID)
	return nil
}

// OpenContact promotes a placeholder: the server creates (or returns)
// the conversation with the contact, the roster moves it into the real
// group, and the thread opens on it.
func (e *Engine) OpenContact(ctx context.Context, targetUserID int64) (*store.Conversation, error) {
	creds := e.sess.Current()
	if creds == nil {
		return nil, fmt.Errorf("open contact: no active session")
	}

	conv, err := e.dir.CreateConversation(ctx, creds.User.UserID, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	e.roster.Promote(*conv)
	e.publishRoster()
	if err := e.db.UpsertConversation(conv); err != nil {
		e.logger.Warn("conversation cache write failed", zap.Error(err))
	}

	if err := e.OpenConversation(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

func (e *Engine) handleServer(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindServerMessage:
		m, ok := evt.Payload.(*store.Message)
		if !ok {
			return
		}
		e.ingestMessage(ctx, m)

	case bus.KindServerPresence:
		p, ok := evt.Payload.(*ws.PresenceEvent)
		if !ok {
			return
		}
		e.presence.Apply(p)
		e.publish(bus.KindChatPresence, p.UserID)

	case bus.KindServerStatus:
		s, ok := evt.Payload.(*ws.StatusEvent)
		if !ok {
			return
		}
		e.applyStatus(s)

	case bus.KindServerSeen:
		s, ok := evt.Payload.(*ws.SeenEvent)
		if !ok {
			return
		}
		e.applySeen(s)

	case bus.KindServerConnected:
		if err := e.Refresh(ctx); err != nil {
			e.logger.Warn("refresh on connect failed", zap.Error(err))
		}
	}
}

func (e *Engine) handleSession(evt bus.Event) {
	if evt.Kind != bus.KindSessionLoggedOut {
		return
	}
	e.thread.Close()
	e.roster.Reset()
	e.presence.Reset()
	if err := e.db.Clear(); err != nil {
		e.logger.Warn("cache clear failed", zap.Error(err))
	}
	e.publishRoster()
}

// ingestMessage merges one pushed message into the thread and roster
// preview, writes it through to the cache, and falls back to a full list
// refetch when the conversation is unknown locally.
func (e *Engine) ingestMessage(ctx context.Context, m *store.Message) {
	if e.thread.Ingest(m) {
		e.publishThread(m.ConversationID)
	}

	if !e.roster.ApplyMessage(m) {
		e.logger.Info("message for unknown conversation, refetching list",
			zap.Int64("conversation_id", m.ConversationID))
		if err := e.Refresh(ctx); err != nil {
			e.logger.Warn("refetch failed", zap.Error(err))
		}
	} else {
		e.publishRoster()
		if conv := e.roster.Conversation(m.ConversationID); conv != nil {
			if err := e.db.UpsertConversation(conv); err != nil {
				e.logger.Warn("conversation cache write failed", zap.Error(err))
			}
		}
	}

	if err := e.db.UpsertMessage(m); err != nil {
		e.logger.Warn("message cache write failed", zap.Error(err))
	}

	if creds := e.sess.Current(); creds != nil && m.SenderID != creds.User.UserID {
		e.publish(bus.KindChatIncoming, m)
	}
}

func (e *Engine) applyStatus(s *ws.StatusEvent) {
	if e.thread.SetStatus(s.ConversationID, s.MessageID, s.Status) {
		e.publishThread(s.ConversationID)
	}
	if e.roster.ApplyStatus(s.ConversationID, s.MessageID, s.Status) {
		e.publishRoster()
	}
	if err := e.db.SetMessageStatus(s.ConversationID, s.MessageID, s.Status); err != nil {
		e.logger.Warn("status cache write failed", zap.Error(err))
	}
}

func (e *Engine) applySeen(s *ws.SeenEvent) {
	if e.thread.MarkSeen(s.ConversationID, s.MessageIDs) {
		e.publishThread(s.ConversationID)
	}
	if e.roster.ApplySeen(s.ConversationID, s.MessageIDs) {
		e.publishRoster()
	}
	if err := e.db.MarkMessagesSeen(s.ConversationID, s.MessageIDs); err != nil {
		e.logger.Warn("seen cache write failed", zap.Error(err))
	}
}

func (e *Engine) publishThread(conversationID int64) {
	e.publish(bus.KindChatThread, conversationID)
}

func (e *Engine) publishRoster() {
	e.publish(bus.KindChatRoster, nil)
}

func (e *Engine) publish(kind string, payload any) {
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
