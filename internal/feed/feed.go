package feed

import (
	"context"
	"sync"

	"cinder/internal/api"
	"cinder/internal/content"
	"cinder/internal/models"
)

type postAPI interface {
	ListFeed(ctx context.Context, page int) (api.Page[models.Post], error)
	ToggleLike(ctx context.Context, postID string) (models.Post, error)
}

// Feed accumulates feed pages. LoadMore is serialized by an in-flight flag:
// a call while a fetch is pending is dropped, not queued. Errors never throw
// away what was already loaded.
type Feed struct {
	api postAPI

	mu       sync.Mutex
	posts    []models.Post
	seen     map[string]bool
	page     int
	hasNext  bool
	loaded   bool
	inFlight bool
	lastErr  string
}

func New(client postAPI) *Feed {
	return &Feed{
		api:  client,
		seen: make(map[string]bool),
	}
}

// LoadMore fetches the next page and appends it. No-op while a load is in
// flight or when the server reported no further pages.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.inFlight || (f.loaded && !f.hasNext) {
		f.mu.Unlock()
		return nil
	}
	f.inFlight = true
	next := f.page + 1
	f.mu.Unlock()

	resp, err := f.api.ListFeed(ctx, next)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false

	if err != nil {
		f.lastErr = err.Error()
		return err
	}

	for _, p := range resp.Items {
		if f.seen[p.ID] {
			continue
		}
		f.seen[p.ID] = true
		p.BodyHTML = renderBody(p.Body)
		f.posts = append(f.posts, p)
	}

	f.page = next
	if resp.CurrentPage > 0 {
		f.page = resp.CurrentPage
	}
	f.hasNext = resp.HasNextPage
	f.loaded = true
	f.lastErr = ""
	return nil
}

// renderBody turns a post's markdown into sanitized HTML. A render failure
// falls back to the escaped raw text rather than dropping the post.
func renderBody(body string) string {
	html, err := content.RenderMarkdown(body)
	if err != nil {
		return content.Escape(body)
	}
	return html
}

// ToggleLike waits for the server's updated post and swaps it in by id.
// There is no optimistic flip; until the server answers, the old state
// stands.
func (f *Feed) ToggleLike(ctx context.Context, postID string) error {
	updated, err := f.api.ToggleLike(ctx, postID)
	if err != nil {
		return err
	}
	updated.BodyHTML = renderBody(updated.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == updated.ID {
			f.posts[i] = updated
			break
		}
	}
	return nil
}

func (f *Feed) Posts() []models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Post, len(f.posts))
	copy(out, f.posts)
	return out
}

func (f *Feed) HasNextPage() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasNext
}

func (f *Feed) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}
