package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
)

func userMessage(room, userID, text string) model.ChatMessage {
	return model.ChatMessage{
		RoomCode: room,
		Author:   "user-" + userID,
		UserID:   userID,
		Text:     text,
		Kind:     model.MessageKindUser,
	}
}

func mustAppend(t *testing.T, s *MessageStore, msg model.ChatMessage) model.ChatMessage {
	t.Helper()
	stored, err := s.Append(context.Background(), msg)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return stored
}

func TestAppendAssignsIDAndIncreasingTimestamps(t *testing.T) {
	s := NewMessageStore(newTestDB(t), 0, 100)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	var prev model.ChatMessage
	for i := 0; i < 5; i++ {
		m := mustAppend(t, s, userMessage("123456", "a", fmt.Sprintf("m%d", i)))
		if m.ID == "" {
			t.Fatal("message id not assigned")
		}
		if i > 0 && !m.CreatedAt.After(prev.CreatedAt) {
			t.Fatalf("timestamp %v not after %v", m.CreatedAt, prev.CreatedAt)
		}
		prev = m
	}
}

func TestPageRoundTrip(t *testing.T) {
	s := NewMessageStore(newTestDB(t), 0, 100)
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		mustAppend(t, s, userMessage("123456", "a", fmt.Sprintf("m%d", i)))
	}
	mustAppend(t, s, userMessage("999999", "a", "other room"))

	page, err := s.Page(ctx, "123456", n, nil)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Messages) != n {
		t.Fatalf("expected %d messages, got %d", n, len(page.Messages))
	}
	for i, m := range page.Messages {
		if m.Text != fmt.Sprintf("m%d", i) {
			t.Fatalf("position %d: got %q", i, m.Text)
		}
	}
	if !page.HasMore {
		t.Fatal("full page should report hasMore")
	}
}

func TestPaginationNoSkipOrDuplicate(t *testing.T) {
	s := NewMessageStore(newTestDB(t), 0, 100)
	ctx := context.Background()

	const n = 23
	for i := 0; i < n; i++ {
		mustAppend(t, s, userMessage("123456", "a", fmt.Sprintf("m%02d", i)))
	}

	var collected []model.ChatMessage
	var before *time.Time
	for {
		page, err := s.Page(ctx, "123456", 5, before)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		collected = append(page.Messages, collected...)
		if !page.HasMore || len(page.Messages) == 0 {
			break
		}
		oldest := page.Messages[0].CreatedAt
		before = &oldest
	}

	if len(collected) != n {
		t.Fatalf("expected %d messages across pages, got %d", n, len(collected))
	}
	seen := map[string]bool{}
	for i, m := range collected {
		if seen[m.ID] {
			t.Fatalf("duplicate message %s", m.ID)
		}
		seen[m.ID] = true
		if m.Text != fmt.Sprintf("m%02d", i) {
			t.Fatalf("position %d: got %q", i, m.Text)
		}
	}
}

func TestPageDefaultLimit(t *testing.T) {
	s := NewMessageStore(newTestDB(t), 0, 3)
	for i := 0; i < 4; i++ {
		mustAppend(t, s, userMessage("123456", "a", fmt.Sprintf("m%d", i)))
	}

	page, err := s.Page(context.Background(), "123456", 0, nil)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page.Messages) != 3 || page.Messages[2].Text != "m3" {
		t.Fatalf("unexpected default page: %+v", page.Messages)
	}
}

func TestRotationKeepsMostRecent(t *testing.T) {
	const max, extra = 5, 3
	s := NewMessageStore(newTestDB(t), max, 100)
	ctx := context.Background()

	for i := 0; i < max+extra; i++ {
		msg := userMessage("123456", "a", fmt.Sprintf("m%d", i))
		if i == 2 {
			msg = model.ChatMessage{RoomCode: "123456", Author: model.SystemAuthor, UserID: model.SystemUserID, Text: "m2", Kind: model.MessageKindSystem}
		}
		mustAppend(t, s, msg)
	}

	count, err := s.Count(ctx, "123456")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != max {
		t.Fatalf("expected %d messages after rotation, got %d", max, count)
	}

	page, _ := s.Page(ctx, "123456", 100, nil)
	for i, m := range page.Messages {
		want := fmt.Sprintf("m%d", i+extra)
		if m.Text != want {
			t.Fatalf("position %d: got %q want %q", i, m.Text, want)
		}
	}
}

func TestDeleteAuthorization(t *testing.T) {
	s := NewMessageStore(newTestDB(t), 0, 100)
	ctx := context.Background()

	own := mustAppend(t, s, userMessage("123456", "a", "mine"))
	sys := mustAppend(t, s, model.ChatMessage{
		RoomCode: "123456", Author: model.SystemAuthor, UserID: model.SystemUserID,
		Text: "a joined the room", Kind: model.MessageKindSystem,
	})

	if err := s.Delete(ctx, own.ID, "b"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-author delete: expected Forbidden, got %v", err)
	}
	if err := s.Delete(ctx, sys.ID, model.SystemUserID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("system delete: expected Forbidden, got %v", err)
	}
	if err := s.Delete(ctx, sys.ID, "a"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("system delete by user: expected Forbidden, got %v", err)
	}
	if err := s.Delete(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", "a"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing message: expected NotFound, got %v", err)
	}
	if err := s.Delete(ctx, own.ID, "a"); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if count, _ := s.Count(ctx, "123456"); count != 1 {
		t.Fatalf("expected 1 remaining message, got %d", count)
	}
}

func TestSearch(t *testing.T) {
	s := NewMessageStore(newTestDB(t), 0, 100)
	ctx := context.Background()

	mustAppend(t, s, userMessage("123456", "a", "Let's grab coffee"))
	mustAppend(t, s, userMessage("123456", "b", "no match here"))
	mustAppend(t, s, userMessage("123456", "b", "ABOUT the exam"))
	mustAppend(t, s, userMessage("123456", "b", "100% done"))
	mustAppend(t, s, model.ChatMessage{
		RoomCode: "123456", Author: model.SystemAuthor, UserID: model.SystemUserID,
		Text: "abby joined the room", Kind: model.MessageKindSystem,
	})
	mustAppend(t, s, userMessage("999999", "a", "about another room"))

	if _, err := s.Search(ctx, "123456", " a ", 0); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("short term: expected InvalidArgument, got %v", err)
	}

	got, err := s.Search(ctx, "123456", "ab", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(got), got)
	}
	// 최신순
	if got[0].Text != "ABOUT the exam" || got[1].Text != "Let's grab coffee" {
		t.Fatalf("unexpected order: %q, %q", got[0].Text, got[1].Text)
	}

	got, err = s.Search(ctx, "123456", "0%", 0)
	if err != nil {
		t.Fatalf("search percent: %v", err)
	}
	if len(got) != 1 || got[0].Text != "100% done" {
		t.Fatalf("percent should match literally, got %+v", got)
	}
}
