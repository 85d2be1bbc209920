package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/domain"
	storebadger "github.com/lattica-ai/ragline/internal/store/badger"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	backend, err := storebadger.Open("", true, zap.NewNop())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return New(backend)
}

func testConversation(id string, updatedAt time.Time) domain.Conversation {
	return domain.Conversation{
		ID:        id,
		Title:     "chat " + id,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestCreateGetUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	conv := testConversation("v1", time.Now().UTC())
	conv.CollectionID = "c1"
	if err := repo.Create(ctx, conv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, "v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CollectionID != "c1" || got.Title != "chat v1" {
		t.Errorf("got %+v", got)
	}

	got.Title = "renamed"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.Get(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "renamed" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestListMostRecentFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"v1", "v2", "v3"} {
		if err := repo.Create(ctx, testConversation(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d conversations, want 3", len(got))
	}
	for i, want := range []string{"v3", "v2", "v1"} {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestAppendAndReadMessages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testConversation("v1", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		msg := domain.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "v1",
			Role:           role,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      time.Now().UTC(),
		}
		if err := repo.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}

	msgs, err := repo.Messages(ctx, "v1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	for i, msg := range msgs {
		if msg.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("msgs[%d].Content = %q", i, msg.Content)
		}
	}
}

func TestAppendMessageToMissingConversation(t *testing.T) {
	repo := newTestRepo(t)

	msg := domain.Message{ID: "m1", ConversationID: "ghost", Role: domain.RoleUser, Content: "hi"}
	if err := repo.AppendMessage(context.Background(), msg); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLastMessagesWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testConversation("v1", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 15; i++ {
		msg := domain.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "v1",
			Role:           domain.RoleUser,
			Content:        fmt.Sprintf("message %d", i),
		}
		if err := repo.AppendMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := repo.LastMessages(ctx, "v1", domain.HistoryWindow)
	if err != nil {
		t.Fatalf("LastMessages: %v", err)
	}
	if len(msgs) != domain.HistoryWindow {
		t.Fatalf("got %d messages, want %d", len(msgs), domain.HistoryWindow)
	}
	if msgs[0].Content != "message 5" || msgs[len(msgs)-1].Content != "message 14" {
		t.Errorf("window = %q .. %q", msgs[0].Content, msgs[len(msgs)-1].Content)
	}
}

func TestDeleteRemovesMessages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testConversation("v1", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	msg := domain.Message{ID: "m1", ConversationID: "v1", Role: domain.RoleUser, Content: "hi"}
	if err := repo.AppendMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}

	if err := repo.Delete(ctx, "v1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := repo.Get(ctx, "v1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get after delete: got %v, want ErrNotFound", err)
	}
	msgs, err := repo.Messages(ctx, "v1")
	if err != nil {
		t.Fatalf("Messages after delete: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages after delete", len(msgs))
	}
}
