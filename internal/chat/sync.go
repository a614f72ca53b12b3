package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"cinder/internal/api"
	"cinder/internal/content"
	"cinder/internal/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type apiClient interface {
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, userID, otherUserID string) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, req api.SendMessageRequest) (models.ChatMessage, error)
}

type Config struct {
	UserID string

	// AlertDuration is how long a new-message alert stays up.
	AlertDuration time.Duration

	// RefreshDelay is the pause before the confirmatory re-fetch after a
	// send. It gives the server time to become consistent.
	RefreshDelay time.Duration

	// Notifier may be nil; alerts then stay in-app only.
	Notifier Notifier
}

// Synchronizer manages the conversation list and the message history of the
// selected conversation. Sends are optimistic: the message shows up
// immediately with StatusSending and is either confirmed in place or marked
// StatusFailed, never silently removed. Message order is whatever order the
// server returns.
type Synchronizer struct {
	api apiClient
	cfg Config

	mu            sync.RWMutex
	conversations []models.Conversation
	selected      *models.Conversation
	messages      []models.ChatMessage
	lastCount     int
	loadedOnce    bool
	loading       bool
	lastErr       string
	alert         *Alert
	alertGen      int

	now func() time.Time
}

func NewSynchronizer(client apiClient, cfg Config) *Synchronizer {
	return &Synchronizer{
		api: client,
		cfg: cfg,
		now: time.Now,
	}
}

// RefreshConversations replaces the conversation list wholesale. On error
// the previous list is kept.
func (s *Synchronizer) RefreshConversations(ctx context.Context) error {
	conversations, err := s.api.ListConversations(ctx, s.cfg.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err.Error()
		return err
	}
	s.conversations = conversations
	s.lastErr = ""
	return nil
}

// Select makes conv the active conversation. The message list is cleared
// immediately so the previous thread never flashes under the new one, then
// the thread is fetched.
func (s *Synchronizer) Select(ctx context.Context, conv models.Conversation) error {
	s.mu.Lock()
	c := conv
	s.selected = &c
	s.messages = nil
	s.lastCount = 0
	s.loadedOnce = false
	s.mu.Unlock()

	return s.FetchMessages(ctx)
}

// FetchMessages loads the active thread. Message bodies are sanitized;
// entries missing an id, or whose content is empty after sanitization, are
// dropped before they reach state. Optimistic entries the server does not
// have yet (in flight or failed) survive the snapshot. When this is not the
// first load for the selection and the server's valid count grew, the delta
// becomes a self-clearing alert plus best-effort beep and OS notification.
func (s *Synchronizer) FetchMessages(ctx context.Context) error {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return models.ErrNoConversation
	}
	otherUserID := s.selected.OtherUserID
	s.loading = true
	s.mu.Unlock()

	fetched, err := s.api.ListMessages(ctx, s.cfg.UserID, otherUserID)

	s.mu.Lock()
	s.loading = false

	if err != nil {
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}

	valid := fetched[:0]
	for _, m := range fetched {
		m.Content = content.Sanitize(m.Content)
		if m.ID == "" || strings.TrimSpace(m.Content) == "" {
			continue
		}
		m.Status = models.StatusSent
		valid = append(valid, m)
	}

	// The selection may have changed while the fetch was in flight.
	if s.selected == nil || s.selected.OtherUserID != otherUserID {
		s.mu.Unlock()
		return nil
	}

	// lastCount tracks server-confirmed messages only, so a locally failed
	// send never reads as a new incoming message.
	newCount := len(valid) - s.lastCount
	raiseAlert := s.loadedOnce && newCount > 0
	s.lastCount = len(valid)

	// Unconfirmed local entries stay visible and retryable across refreshes.
	known := make(map[string]bool, len(valid))
	for _, m := range valid {
		known[m.ID] = true
	}
	for _, m := range s.messages {
		if m.Status != models.StatusSent && !known[m.ID] {
			valid = append(valid, m)
		}
	}

	s.messages = valid
	s.loadedOnce = true
	s.lastErr = ""
	s.mu.Unlock()

	if raiseAlert {
		s.raiseAlert(newCount)
	}
	return nil
}

func (s *Synchronizer) raiseAlert(count int) {
	a := newAlert(count)

	s.mu.Lock()
	s.alert = &a
	s.alertGen++
	gen := s.alertGen
	s.mu.Unlock()

	time.AfterFunc(s.cfg.AlertDuration, func() {
		s.mu.Lock()
		if s.alertGen == gen {
			s.alert = nil
		}
		s.mu.Unlock()
	})

	if s.cfg.Notifier != nil {
		if err := s.cfg.Notifier.Beep(); err != nil {
			log.Printf("chat: beep failed: %v", err)
		}
		if err := s.cfg.Notifier.Notify("Cinder", a.Message); err != nil {
			log.Printf("chat: OS notification failed: %v", err)
		}
	}
}

// Send posts content to the active conversation. The message appears in the
// list right away with a temporary id; the server's confirmed message
// replaces it in place. On failure the entry is marked failed and stays
// visible so the user can retry or see what was lost.
func (s *Synchronizer) Send(ctx context.Context, content string) error {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return models.ErrNoConversation
	}
	otherUserID := s.selected.OtherUserID

	temp := models.ChatMessage{
		ID:         "tmp-" + uuid.NewString(),
		SenderID:   s.cfg.UserID,
		ReceiverID: otherUserID,
		Content:    content,
		CreatedAt:  s.now().Unix(),
		Status:     models.StatusSending,
	}
	s.messages = append(s.messages, temp)
	s.mu.Unlock()

	return s.deliver(ctx, temp.ID, otherUserID, content)
}

// Retry re-sends a failed optimistic message identified by its temporary id.
func (s *Synchronizer) Retry(ctx context.Context, tempID string) error {
	s.mu.Lock()
	var content, otherUserID string
	found := false
	for i := range s.messages {
		if s.messages[i].ID == tempID && s.messages[i].Status == models.StatusFailed {
			s.messages[i].Status = models.StatusSending
			content = s.messages[i].Content
			otherUserID = s.messages[i].ReceiverID
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return models.ErrNotFound
	}
	return s.deliver(ctx, tempID, otherUserID, content)
}

func (s *Synchronizer) deliver(ctx context.Context, tempID, otherUserID, body string) error {
	confirmed, err := s.api.SendMessage(ctx, api.SendMessageRequest{
		SenderID:   s.cfg.UserID,
		ReceiverID: otherUserID,
		Content:    body,
	})

	s.mu.Lock()
	if err != nil {
		for i := range s.messages {
			if s.messages[i].ID == tempID {
				s.messages[i].Status = models.StatusFailed
				break
			}
		}
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}

	confirmed.Content = content.Sanitize(confirmed.Content)
	confirmed.Status = models.StatusSent
	replaced := false
	for i := range s.messages {
		if s.messages[i].ID == tempID {
			s.messages[i] = confirmed
			replaced = true
			break
		}
	}
	if !replaced {
		// Selection changed mid-send; the thread will pick the message up
		// on its next fetch.
		s.mu.Unlock()
		return nil
	}
	// The server has this message now; the next fetch must not alert on it.
	s.lastCount++

	for i := range s.conversations {
		if s.conversations[i].OtherUserID == otherUserID {
			last := confirmed
			s.conversations[i].LastMessage = &last
			break
		}
	}
	s.mu.Unlock()

	s.scheduleConfirmRefresh()
	return nil
}

// scheduleConfirmRefresh re-syncs thread and conversation list after a send,
// delayed so the server has settled. Timer-based reconciliation, not an ack.
func (s *Synchronizer) scheduleConfirmRefresh() {
	time.AfterFunc(s.cfg.RefreshDelay, func() {
		if err := s.FetchMessages(context.Background()); err != nil {
			log.Printf("chat: post-send message refresh failed: %v", err)
		}
	})
	time.AfterFunc(2*s.cfg.RefreshDelay, func() {
		if err := s.RefreshConversations(context.Background()); err != nil {
			log.Printf("chat: post-send conversation refresh failed: %v", err)
		}
	})
}

// RefreshCurrent is the manual re-sync entry point: active thread and
// conversation list together.
func (s *Synchronizer) RefreshCurrent(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.FetchMessages(gCtx) })
	g.Go(func() error { return s.RefreshConversations(gCtx) })
	return g.Wait()
}

func (s *Synchronizer) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

func (s *Synchronizer) Messages() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Synchronizer) Selected() (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return models.Conversation{}, false
	}
	return *s.selected, true
}

func (s *Synchronizer) Alert() (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.alert == nil {
		return Alert{}, false
	}
	return *s.alert, true
}

func (s *Synchronizer) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Synchronizer) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
