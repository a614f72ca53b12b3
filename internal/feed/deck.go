package feed

import (
	"context"
	"log"
	"sync"
	"time"

	"cinder/internal/api"
	"cinder/internal/models"

	"github.com/google/uuid"
)

type matchAPI interface {
	ListMatches(ctx context.Context, page int) (api.Page[models.Profile], error)
	CreateSwipe(ctx context.Context, req api.CreateSwipeRequest) (models.SwipeResult, error)
}

type swipeRecorder interface {
	AddSwipeNotification(userID string, n models.LocalSwipeNotification) error
}

// Deck pages through potential-match profiles and records swipes. Like
// outcomes are mirrored into the per-user local swipe-notification store;
// that mirror is best-effort and never blocks the swipe itself.
type Deck struct {
	api    matchAPI
	store  swipeRecorder
	userID string

	mu       sync.Mutex
	profiles []models.Profile
	seen     map[string]bool
	page     int
	hasNext  bool
	loaded   bool
	inFlight bool
	lastErr  string

	now func() time.Time
}

func NewDeck(client matchAPI, store swipeRecorder, userID string) *Deck {
	return &Deck{
		api:    client,
		store:  store,
		userID: userID,
		seen:   make(map[string]bool),
		now:    time.Now,
	}
}

// LoadMore fetches the next page of profiles. Same serialization rules as
// the feed pager: in-flight calls are dropped, errors keep the deck.
func (d *Deck) LoadMore(ctx context.Context) error {
	d.mu.Lock()
	if d.inFlight || (d.loaded && !d.hasNext) {
		d.mu.Unlock()
		return nil
	}
	d.inFlight = true
	next := d.page + 1
	d.mu.Unlock()

	resp, err := d.api.ListMatches(ctx, next)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight = false

	if err != nil {
		d.lastErr = err.Error()
		return err
	}

	for _, p := range resp.Items {
		if d.seen[p.ID] {
			continue
		}
		d.seen[p.ID] = true
		d.profiles = append(d.profiles, p)
	}

	d.page = next
	if resp.CurrentPage > 0 {
		d.page = resp.CurrentPage
	}
	d.hasNext = resp.HasNextPage
	d.loaded = true
	d.lastErr = ""
	return nil
}

// Swipe submits the decision for profile and removes it from the deck. On a
// like or superlike the outcome is written to the local swipe-notification
// store; a mutual like upgrades the record to a match.
func (d *Deck) Swipe(ctx context.Context, profile models.Profile, action models.SwipeDirection) (models.SwipeResult, error) {
	result, err := d.api.CreateSwipe(ctx, api.CreateSwipeRequest{
		TargetID: profile.ID,
		Action:   action,
	})
	if err != nil {
		return models.SwipeResult{}, err
	}

	d.mu.Lock()
	for i := range d.profiles {
		if d.profiles[i].ID == profile.ID {
			d.profiles = append(d.profiles[:i], d.profiles[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	if action != models.SwipePass && d.store != nil {
		localType := models.LocalSwipeLike
		if action == models.SwipeSuperlike {
			localType = models.LocalSwipeSuperlike
		}
		if result.Matched {
			localType = models.LocalSwipeMatch
		}

		err := d.store.AddSwipeNotification(d.userID, models.LocalSwipeNotification{
			ID:        uuid.NewString(),
			Type:      localType,
			Sender:    profile,
			Timestamp: d.now().Unix(),
		})
		if err != nil {
			log.Printf("feed: failed to record local swipe notification: %v", err)
		}
	}

	return result, nil
}

func (d *Deck) Profiles() []models.Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Profile, len(d.profiles))
	copy(out, d.profiles)
	return out
}

func (d *Deck) HasNextPage() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasNext
}

func (d *Deck) Err() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}
