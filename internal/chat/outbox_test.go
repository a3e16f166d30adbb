package chat

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MR-JLTC/tutorchat/internal/bus"
	"github.com/MR-JLTC/tutorchat/internal/store"
)

type sentCall struct {
	conversationID int64
	content        string
}

type fakeChannel struct {
	live    bool
	sendErr error
	sent    []sentCall
	lastCB  func(error)
}

func (f *fakeChannel) Live() bool { return f.live }

func (f *fakeChannel) SendMessage(conversationID int64, content string, cb func(error)) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentCall{conversationID, content})
	f.lastCB = cb
	return nil
}

func testOutbox(t *testing.T, live bool) (*Outbox, *fakeChannel, *Thread, *bus.Bus) {
	t.Helper()
	ch := &fakeChannel{live: live}
	th := NewThread()
	th.Open(10, 1, nil)
	b := bus.New()
	return NewOutbox(ch, th, b, zap.NewNop()), ch, th, b
}

func waitFailure(t *testing.T, ch <-chan bus.Event) *SendFailure {
	t.Helper()
	select {
	case evt := <-ch:
		f, ok := evt.Payload.(*SendFailure)
		if !ok {
			t.Fatalf("payload = %T, want *SendFailure", evt.Payload)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for send failure event")
		return nil
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	o, ch, _, _ := testOutbox(t, true)
	for _, content := range []string{"", "   ", "\n\t"} {
		if err := o.Send(content, "Ana"); err != ErrEmptyMessage {
			t.Errorf("Send(%q) = %v, want ErrEmptyMessage", content, err)
		}
	}
	if len(ch.sent) != 0 {
		t.Error("rejected sends reached the channel")
	}
}

func TestSendRejectsWithoutConversation(t *testing.T) {
	o, _, th, _ := testOutbox(t, true)
	th.Close()
	if err := o.Send("hello", "Ana"); err != ErrNoConversation {
		t.Errorf("err = %v, want ErrNoConversation", err)
	}
}

func TestSendRejectsOffline(t *testing.T) {
	o, _, _, _ := testOutbox(t, false)
	if err := o.Send("hello", "Ana"); err != ErrOffline {
		t.Errorf("err = %v, want ErrOffline", err)
	}
}

func TestSendAppendsProvisionalImmediately(t *testing.T) {
	o, ch, th, _ := testOutbox(t, true)

	if err := o.Send("  hello  ", "Ana"); err != nil {
		t.Fatal(err)
	}

	msgs := th.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Confirmed() {
		t.Error("provisional message carries a server id")
	}
	if m.LocalID == "" {
		t.Error("provisional message has no local id")
	}
	if m.Content != "hello" {
		t.Errorf("content = %q, want trimmed %q", m.Content, "hello")
	}
	if m.Status != store.StatusSent {
		t.Errorf("status = %q, want sent", m.Status)
	}
	if len(ch.sent) != 1 || ch.sent[0].content != "hello" {
		t.Errorf("sent = %+v", ch.sent)
	}
}

func TestAckFailureRollsBackAndRestoresInput(t *testing.T) {
	o, ch, th, b := testOutbox(t, true)
	failCh, unsub := b.Subscribe(bus.KindChatSendFailed, 4)
	defer unsub()

	original := " hello there "
	if err := o.Send(original, "Ana"); err != nil {
		t.Fatal(err)
	}
	ch.lastCB(errors.New("server rejected"))

	f := waitFailure(t, failCh)
	if f.Content != original {
		t.Errorf("restored content = %q, want %q", f.Content, original)
	}
	if n := len(th.Messages()); n != 0 {
		t.Errorf("thread len = %d, want 0 after rollback", n)
	}
}

func TestAckSuccessKeepsProvisional(t *testing.T) {
	o, ch, th, _ := testOutbox(t, true)
	if err := o.Send("hello", "Ana"); err != nil {
		t.Fatal(err)
	}
	ch.lastCB(nil)
	if n := len(th.Messages()); n != 1 {
		t.Errorf("thread len = %d, want 1 (echo reconciliation replaces it later)", n)
	}
}

func TestEmitFailureRollsBackImmediately(t *testing.T) {
	o, ch, th, b := testOutbox(t, true)
	ch.sendErr = errors.New("socket gone")
	failCh, unsub := b.Subscribe(bus.KindChatSendFailed, 4)
	defer unsub()

	if err := o.Send("hello", "Ana"); err == nil {
		t.Fatal("expected error from failed emit")
	}
	waitFailure(t, failCh)
	if n := len(th.Messages()); n != 0 {
		t.Errorf("thread len = %d, want 0", n)
	}
}

func TestSendThenEchoLeavesSingleConfirmedMessage(t *testing.T) {
	o, _, th, _ := testOutbox(t, true)
	if err := o.Send("hello", "Ana"); err != nil {
		t.Fatal(err)
	}

	echo := store.Message{
		ConversationID: 10, ServerID: 42, SenderID: 1,
		Content: "hello", Status: store.StatusSent, CreatedAt: time.Now().UnixMilli(),
	}
	if !th.Ingest(&echo) {
		t.Fatal("echo not ingested")
	}

	msgs := th.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want exactly one message", len(msgs))
	}
	if msgs[0].ServerID != 42 {
		t.Errorf("server id = %d, want 42", msgs[0].ServerID)
	}
}
