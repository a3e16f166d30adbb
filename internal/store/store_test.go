package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestConversationUpsertAndList(t *testing.T) {
	db := testDB(t)

	convs := []Conversation{
		{ID: 1, PartnerID: 10, PartnerName: "Maya", PartnerRole: "tutor", LastMessage: "see you at 3", LastMessageAt: 2000, CreatedAt: 1000},
		{ID: 2, PartnerID: 11, PartnerName: "Leo", PartnerRole: "tutee", LastMessage: "thanks!", LastMessageAt: 5000, CreatedAt: 1500},
	}
	for i := range convs {
		if err := db.UpsertConversation(&convs[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ListConversations(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d conversations, want 2", len(got))
	}
	// Most recent first.
	if got[0].ID != 2 || got[1].ID != 1 {
		t.Errorf("order = [%d %d], want [2 1]", got[0].ID, got[1].ID)
	}
}

func TestConversationUpsertKeepsNewestTimestamp(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{ID: 1, PartnerID: 10, LastMessage: "newer", LastMessageAt: 9000}); err != nil {
		t.Fatal(err)
	}
	// A stale refetch must not roll the recency back.
	if err := db.UpsertConversation(&Conversation{ID: 1, PartnerID: 10, LastMessage: "older", LastMessageAt: 1000}); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation(1)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("conversation not found")
	}
	if c.LastMessageAt != 9000 {
		t.Errorf("last_message_at = %d, want 9000", c.LastMessageAt)
	}
}

func TestGetConversationMissing(t *testing.T) {
	db := testDB(t)
	c, err := db.GetConversation(99)
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("got %+v, want nil for missing conversation", c)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{ConversationID: 1, ServerID: 42, SenderID: 10, Content: "hello", Status: StatusSent, CreatedAt: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Status = StatusDelivered
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(1, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent)", len(msgs))
	}
	if msgs[0].Status != StatusDelivered {
		t.Errorf("status = %q, want %q", msgs[0].Status, StatusDelivered)
	}
}

func TestUpsertMessageRejectsProvisional(t *testing.T) {
	db := testDB(t)

	err := db.UpsertMessage(&Message{ConversationID: 1, LocalID: "tmp-1", Content: "pending"})
	if err == nil {
		t.Error("UpsertMessage() should reject a message without a server id")
	}
}

func TestMarkMessagesSeen(t *testing.T) {
	db := testDB(t)

	for i, id := range []int64{41, 42, 43} {
		if err := db.UpsertMessage(&Message{ConversationID: 1, ServerID: id, SenderID: 10, Content: "m", Status: StatusSent, CreatedAt: int64(1000 + i)}); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.MarkMessagesSeen(1, []int64{41, 42}); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages(1, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int64]string{}
	for _, m := range msgs {
		seen[m.ServerID] = m.Status
	}
	if seen[41] != StatusSeen || seen[42] != StatusSeen {
		t.Errorf("statuses = %v, want 41 and 42 seen", seen)
	}
	if seen[43] != StatusSent {
		t.Errorf("message 43 status = %q, want untouched %q", seen[43], StatusSent)
	}
}

func TestContactsReplace(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertContacts([]Contact{
		{UserID: 1, Name: "Maya", Role: "tutor", Verified: true},
		{UserID: 2, Name: "Leo", Role: "tutee"},
	}); err != nil {
		t.Fatal(err)
	}

	contacts, err := db.ListContacts()
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 {
		t.Fatalf("got %d contacts, want 2", len(contacts))
	}

	// Upserting again with a changed name updates in place.
	if err := db.UpsertContacts([]Contact{{UserID: 1, Name: "Maya R.", Role: "tutor", Verified: true}}); err != nil {
		t.Fatal(err)
	}
	contacts, _ = db.ListContacts()
	var found bool
	for _, c := range contacts {
		if c.UserID == 1 && c.Name == "Maya R." {
			found = true
		}
	}
	if !found {
		t.Error("contact 1 was not updated in place")
	}
}

func TestClear(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{ID: 1, PartnerID: 10, LastMessageAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationID: 1, ServerID: 1, SenderID: 10, Content: "x", Status: StatusSent, CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.Clear(); err != nil {
		t.Fatal(err)
	}

	convs, _ := db.ListConversations(10)
	msgs, _ := db.ListMessages(1, 0, 10)
	if len(convs) != 0 || len(msgs) != 0 {
		t.Errorf("got %d conversations and %d messages after Clear, want 0 and 0", len(convs), len(msgs))
	}
}

func TestStatusAdvances(t *testing.T) {
	if !StatusAdvances(StatusSent, StatusDelivered) {
		t.Error("sent -> delivered should advance")
	}
	if !StatusAdvances(StatusDelivered, StatusSeen) {
		t.Error("delivered -> seen should advance")
	}
	if StatusAdvances(StatusSeen, StatusDelivered) {
		t.Error("seen -> delivered should not advance")
	}
	if StatusAdvances(StatusSent, StatusSent) {
		t.Error("sent -> sent should not advance")
	}
}
