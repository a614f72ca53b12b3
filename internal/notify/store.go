package notify

import (
	"context"
	"sync"

	"cinder/internal/models"
)

const listenerKey = "notify.store"

type apiClient interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationsRead(ctx context.Context, ids []string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

type connManager interface {
	Connect(ctx context.Context, userID string)
	Disconnect()
	OnNotification(key string, cb func(models.Notification))
	OffNotification(key string)
}

type avatarPrefetcher interface {
	Prefetch(ctx context.Context, url string)
}

// Store holds the client view of the current user's notifications. Snapshot
// fetches and live pushes merge into one list; the notification id is the
// dedup key. The view is authoritative-enough: pushes keep it fresh, the
// periodic Refresh corrects whatever the socket missed.
type Store struct {
	api     apiClient
	conn    connManager
	avatars avatarPrefetcher

	mu      sync.RWMutex
	items   []models.Notification
	unread  int
	lastErr string

	bindCtx context.Context
}

// NewStore builds a Store. avatars may be nil; prefetching is optional.
func NewStore(api apiClient, conn connManager, avatars avatarPrefetcher) *Store {
	return &Store{
		api:     api,
		conn:    conn,
		avatars: avatars,
		bindCtx: context.Background(),
	}
}

// Bind attaches the store to a user identity: connects the socket, registers
// the push listener and loads the initial snapshot pair. Call Close before
// binding a different identity, otherwise events could bleed across users.
func (s *Store) Bind(ctx context.Context, userID string) {
	s.mu.Lock()
	s.bindCtx = ctx
	s.mu.Unlock()

	s.conn.Connect(ctx, userID)
	s.conn.OnNotification(listenerKey, s.Ingest)

	s.Refresh(ctx)
	s.RefreshUnread(ctx)
}

// Close removes the push listener and drops the connection. Idempotent.
func (s *Store) Close() {
	s.conn.OffNotification(listenerKey)
	s.conn.Disconnect()
}

// Refresh replaces the list with the server's snapshot. On error the
// existing list stays: stale data beats an empty screen.
func (s *Store) Refresh(ctx context.Context) {
	items, err := s.api.ListNotifications(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err.Error()
		return
	}
	s.items = items
	s.lastErr = ""
}

// RefreshUnread fetches the unread badge count. It does not need the full
// list to be loaded.
func (s *Store) RefreshUnread(ctx context.Context) {
	count, err := s.api.UnreadCount(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err.Error()
		return
	}
	s.unread = count
}

// Ingest merges one pushed notification. A duplicate id changes nothing;
// a new one is prepended and bumps unread by exactly one. Pushes never
// decrement the counter.
func (s *Store) Ingest(n models.Notification) {
	s.mu.Lock()
	for _, existing := range s.items {
		if existing.ID == n.ID {
			s.mu.Unlock()
			return
		}
	}
	s.items = append([]models.Notification{n}, s.items...)
	s.unread++
	ctx := s.bindCtx
	s.mu.Unlock()

	if s.avatars != nil {
		go s.avatars.Prefetch(ctx, n.Sender.AvatarURL)
	}
}

// MarkRead flips the given notifications to read locally first, then tells
// the server. Local state is not rolled back on failure, the risk is
// cosmetic; the error still goes to the caller.
func (s *Store) MarkRead(ctx context.Context, ids []string) error {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	s.mu.Lock()
	for i := range s.items {
		if wanted[s.items[i].ID] {
			s.items[i].Read = true
		}
	}
	s.mu.Unlock()

	if err := s.api.MarkNotificationsRead(ctx, ids); err != nil {
		return err
	}

	s.RefreshUnread(ctx)
	return nil
}

// MarkAllRead flips everything to read and zeroes the badge at initiation,
// before the server call resolves.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.unread = 0
	s.mu.Unlock()

	return s.api.MarkAllNotificationsRead(ctx)
}

// Notifications returns a copy of the current list, most recent first.
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Err returns the last fetch error message, empty when the last fetch
// succeeded.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
