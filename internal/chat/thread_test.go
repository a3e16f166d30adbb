package chat

import (
	"testing"

	"github.com/MR-JLTC/tutorchat/internal/store"
)

func openThread(t *testing.T, history ...store.Message) *Thread {
	t.Helper()
	th := NewThread()
	th.Open(10, 1, history)
	return th
}

func confirmed(serverID, senderID int64, content string, at int64) store.Message {
	return store.Message{
		ConversationID: 10,
		ServerID:       serverID,
		SenderID:       senderID,
		Content:        content,
		Status:         store.StatusSent,
		CreatedAt:      at,
	}
}

func TestOpenSortsAndDeduplicatesHistory(t *testing.T) {
	th := openThread(t,
		confirmed(2, 2, "second", 200),
		confirmed(1, 1, "first", 100),
		confirmed(2, 2, "second", 200),
	)

	msgs := th.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].ServerID != 1 || msgs[1].ServerID != 2 {
		t.Errorf("order = %d,%d, want 1,2", msgs[0].ServerID, msgs[1].ServerID)
	}
}

func TestIngestIgnoresDuplicateServerID(t *testing.T) {
	th := openThread(t, confirmed(1, 2, "hi", 100))

	m := confirmed(1, 2, "hi", 100)
	if th.Ingest(&m) {
		t.Error("duplicate server id was ingested")
	}
	if n := len(th.Messages()); n != 1 {
		t.Errorf("len = %d, want 1", n)
	}
}

func TestIngestAppendsInbound(t *testing.T) {
	th := openThread(t, confirmed(1, 2, "hi", 100))

	m := confirmed(2, 2, "how are you", 200)
	if !th.Ingest(&m) {
		t.Fatal("inbound message not ingested")
	}
	msgs := th.Messages()
	if len(msgs) != 2 || msgs[1].ServerID != 2 {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestEchoReplacesProvisionalInPlace(t *testing.T) {
	th := openThread(t, confirmed(1, 2, "hi", 100))
	th.AppendProvisional(store.Message{
		ConversationID: 10, LocalID: "tmp-1", SenderID: 1,
		Content: "hello", Status: store.StatusSent, CreatedAt: 200,
	})
	m := confirmed(3, 2, "later", 300)
	th.Ingest(&m)

	echo := confirmed(42, 1, "hello", 250)
	if !th.Ingest(&echo) {
		t.Fatal("echo not ingested")
	}

	msgs := th.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	// Provisional held position 1; the confirmed record must stay there.
	if msgs[1].ServerID != 42 {
		t.Errorf("position 1 server id = %d, want 42", msgs[1].ServerID)
	}
	if msgs[1].LocalID != "tmp-1" {
		t.Errorf("local id = %q, want tmp-1", msgs[1].LocalID)
	}
	for _, m := range msgs {
		if m.Content == "hello" && m.ServerID != 42 {
			t.Error("provisional survived alongside the confirmed echo")
		}
	}
}

func TestEchoFromOtherUserDoesNotClaimProvisional(t *testing.T) {
	th := openThread(t)
	th.AppendProvisional(store.Message{
		ConversationID: 10, LocalID: "tmp-1", SenderID: 1,
		Content: "hello", Status: store.StatusSent, CreatedAt: 100,
	})

	inbound := confirmed(5, 2, "hello", 150)
	th.Ingest(&inbound)

	if n := len(th.Messages()); n != 2 {
		t.Errorf("len = %d, want 2 (identical content from another sender appends)", n)
	}
}

func TestIngestIgnoresOtherConversation(t *testing.T) {
	th := openThread(t)
	m := store.Message{ConversationID: 99, ServerID: 1, SenderID: 2, Content: "x", CreatedAt: 100}
	if th.Ingest(&m) {
		t.Error("message for another conversation was ingested")
	}
}

func TestRemoveProvisional(t *testing.T) {
	th := openThread(t, confirmed(1, 2, "hi", 100))
	th.AppendProvisional(store.Message{
		ConversationID: 10, LocalID: "tmp-1", SenderID: 1,
		Content: "oops", Status: store.StatusSent, CreatedAt: 200,
	})

	if !th.RemoveProvisional("tmp-1") {
		t.Fatal("provisional not found")
	}
	if n := len(th.Messages()); n != 1 {
		t.Errorf("len = %d, want 1", n)
	}
	if th.RemoveProvisional("tmp-1") {
		t.Error("second removal should report absence")
	}
}

func TestMarkSeenUpdatesExactlyListedIDs(t *testing.T) {
	th := openThread(t,
		confirmed(1, 1, "a", 100),
		confirmed(2, 1, "b", 200),
		confirmed(3, 1, "c", 300),
	)

	if !th.MarkSeen(10, []int64{1, 2}) {
		t.Fatal("mark seen reported no change")
	}
	msgs := th.Messages()
	if msgs[0].Status != store.StatusSeen || msgs[1].Status != store.StatusSeen {
		t.Error("listed messages not marked seen")
	}
	if msgs[2].Status != store.StatusSent {
		t.Errorf("unlisted message status = %q, want sent", msgs[2].Status)
	}
}

func TestSetStatusNeverRegresses(t *testing.T) {
	th := openThread(t, confirmed(1, 1, "a", 100))

	if !th.SetStatus(10, 1, store.StatusSeen) {
		t.Fatal("advance to seen rejected")
	}
	if th.SetStatus(10, 1, store.StatusDelivered) {
		t.Error("regression to delivered was applied")
	}
	if got := th.Messages()[0].Status; got != store.StatusSeen {
		t.Errorf("status = %q, want seen", got)
	}
}

func TestCloseClearsThread(t *testing.T) {
	th := openThread(t, confirmed(1, 1, "a", 100))
	th.Close()
	if th.ConversationID() != 0 || len(th.Messages()) != 0 {
		t.Error("close left state behind")
	}
}
