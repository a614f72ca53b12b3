package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"cinder/internal/models"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func swipeNotif(id string, ts int64) models.LocalSwipeNotification {
	return models.LocalSwipeNotification{
		ID:   id,
		Type: models.LocalSwipeLike,
		Sender: models.Profile{
			ID:          "sender-" + id,
			DisplayName: "Sender " + id,
			AvatarURL:   "http://example.com/" + id + ".png",
		},
		Timestamp: ts,
	}
}

func TestLocalStore_SwipeNotifications(t *testing.T) {
	s := newTestStore(t)

	t.Run("list empty user", func(t *testing.T) {
		got, err := s.ListSwipeNotifications("nobody")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no records, got %d", len(got))
		}
	})

	t.Run("add and list most recent first", func(t *testing.T) {
		for i, id := range []string{"a", "b", "c"} {
			if err := s.AddSwipeNotification("u1", swipeNotif(id, int64(1000+i))); err != nil {
				t.Fatalf("add %s failed: %v", id, err)
			}
		}

		got, err := s.ListSwipeNotifications("u1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 records, got %d", len(got))
		}
		if got[0].ID != "c" || got[1].ID != "b" || got[2].ID != "a" {
			t.Errorf("wrong ordering: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
		}
		if got[0].Sender.DisplayName != "Sender c" {
			t.Errorf("sender snapshot lost: %+v", got[0].Sender)
		}
	})

	t.Run("rejects empty user id", func(t *testing.T) {
		if err := s.AddSwipeNotification("", swipeNotif("x", 1)); err == nil {
			t.Error("expected error for empty user id")
		}
	})

	t.Run("per-user isolation", func(t *testing.T) {
		if err := s.AddSwipeNotification("u2", swipeNotif("other", 5000)); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		u1, err := s.ListSwipeNotifications("u1")
		if err != nil {
			t.Fatalf("list u1 failed: %v", err)
		}
		for _, n := range u1 {
			if n.ID == "other" {
				t.Error("u2's record leaked into u1's list")
			}
		}

		u2, err := s.ListSwipeNotifications("u2")
		if err != nil {
			t.Fatalf("list u2 failed: %v", err)
		}
		if len(u2) != 1 || u2[0].ID != "other" {
			t.Errorf("expected u2's single record, got %v", u2)
		}
	})

	t.Run("mark read", func(t *testing.T) {
		if err := s.MarkSwipeNotificationsRead("u1", []string{"a", "missing"}); err != nil {
			t.Fatalf("mark read failed: %v", err)
		}

		got, err := s.ListSwipeNotifications("u1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		for _, n := range got {
			if n.ID == "a" && !n.Read {
				t.Error("expected a to be read")
			}
			if n.ID != "a" && n.Read {
				t.Errorf("record %s flipped unexpectedly", n.ID)
			}
		}
	})

	t.Run("clear user", func(t *testing.T) {
		if err := s.ClearUser("u1"); err != nil {
			t.Fatalf("clear failed: %v", err)
		}

		got, err := s.ListSwipeNotifications("u1")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected u1 cleared, got %d records", len(got))
		}

		// Other users are untouched.
		u2, err := s.ListSwipeNotifications("u2")
		if err != nil {
			t.Fatalf("list u2 failed: %v", err)
		}
		if len(u2) != 1 {
			t.Errorf("expected u2 intact, got %d records", len(u2))
		}

		// Clearing an absent user is a no-op.
		if err := s.ClearUser("u1"); err != nil {
			t.Errorf("second clear failed: %v", err)
		}
	})
}

func TestLocalStore_Session(t *testing.T) {
	s := newTestStore(t)

	t.Run("load absent session", func(t *testing.T) {
		_, _, err := s.LoadSession()
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		if err := s.SaveSession("u1", "tok-123"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		userID, token, err := s.LoadSession()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if userID != "u1" || token != "tok-123" {
			t.Errorf("got %q/%q", userID, token)
		}
	})

	t.Run("save overwrites", func(t *testing.T) {
		if err := s.SaveSession("u2", "tok-456"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		userID, token, err := s.LoadSession()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if userID != "u2" || token != "tok-456" {
			t.Errorf("got %q/%q", userID, token)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.DeleteSession(); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, _, err := s.LoadSession(); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		// Deleting again is a no-op.
		if err := s.DeleteSession(); err != nil {
			t.Errorf("second delete failed: %v", err)
		}
	})
}
