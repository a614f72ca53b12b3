package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"cinder/internal/api"
	"cinder/internal/models"
)

type fakePostAPI struct {
	mu      sync.Mutex
	pages   map[int]api.Page[models.Post]
	listErr error
	likeErr error
	calls   int
	block   chan struct{} // when set, ListFeed waits on it
	updated models.Post
}

func (f *fakePostAPI) ListFeed(ctx context.Context, page int) (api.Page[models.Post], error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return api.Page[models.Post]{}, f.listErr
	}
	return f.pages[page], nil
}

func (f *fakePostAPI) ToggleLike(ctx context.Context, postID string) (models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likeErr != nil {
		return models.Post{}, f.likeErr
	}
	return f.updated, nil
}

func (f *fakePostAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func posts(ids ...string) []models.Post {
	out := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Post{ID: id, Body: "post " + id})
	}
	return out
}

func TestFeed_LoadMoreAppends(t *testing.T) {
	a := &fakePostAPI{pages: map[int]api.Page[models.Post]{
		1: {Items: posts("p1", "p2"), HasNextPage: true, CurrentPage: 1},
		2: {Items: posts("p3"), HasNextPage: false, CurrentPage: 2},
	}}
	f := New(a)

	if err := f.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if got := len(f.Posts()); got != 2 {
		t.Fatalf("expected 2 posts, got %d", got)
	}
	if !f.HasNextPage() {
		t.Fatal("expected a next page")
	}

	if err := f.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	all := f.Posts()
	if len(all) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(all))
	}
	if all[2].ID != "p3" {
		t.Errorf("expected append order, got last %s", all[2].ID)
	}
	if f.HasNextPage() {
		t.Error("expected pagination to be exhausted")
	}

	// Exhausted: further calls fetch nothing.
	if err := f.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}
	if got := a.callCount(); got != 2 {
		t.Errorf("expected 2 fetches total, got %d", got)
	}
}

func TestFeed_LoadMoreNeverDuplicates(t *testing.T) {
	// Page 2 overlaps page 1, as happens when items shift between fetches.
	a := &fakePostAPI{pages: map[int]api.Page[models.Post]{
		1: {Items: posts("p1", "p2"), HasNextPage: true},
		2: {Items: posts("p2", "p3"), HasNextPage: false},
	}}
	f := New(a)

	_ = f.LoadMore(context.Background())
	_ = f.LoadMore(context.Background())

	seen := make(map[string]int)
	for _, p := range f.Posts() {
		seen[p.ID]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("post %s appears %d times", id, count)
		}
	}
	if len(f.Posts()) != 3 {
		t.Errorf("expected 3 unique posts, got %d", len(f.Posts()))
	}
}

func TestFeed_ConcurrentLoadMoreDropped(t *testing.T) {
	block := make(chan struct{})
	a := &fakePostAPI{
		pages: map[int]api.Page[models.Post]{1: {Items: posts("p1"), HasNextPage: true}},
		block: block,
	}
	f := New(a)

	done := make(chan error)
	go func() { done <- f.LoadMore(context.Background()) }()

	// Wait until the first call is parked inside the fake.
	for a.callCount() == 0 {
	}

	// Second call while in flight: dropped, not queued.
	if err := f.LoadMore(context.Background()); err != nil {
		t.Fatalf("concurrent LoadMore returned error: %v", err)
	}
	if got := a.callCount(); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first LoadMore failed: %v", err)
	}
	if got := len(f.Posts()); got != 1 {
		t.Errorf("expected 1 post, got %d", got)
	}
}

func TestFeed_ErrorPreservesItems(t *testing.T) {
	a := &fakePostAPI{pages: map[int]api.Page[models.Post]{
		1: {Items: posts("p1", "p2"), HasNextPage: true},
	}}
	f := New(a)
	_ = f.LoadMore(context.Background())

	a.mu.Lock()
	a.listErr = errors.New("server down")
	a.mu.Unlock()

	if err := f.LoadMore(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if got := len(f.Posts()); got != 2 {
		t.Errorf("expected previous items preserved, got %d", got)
	}
	if f.Err() == "" {
		t.Error("expected error flag to be set")
	}
}

func TestFeed_ToggleLikeReplacesByID(t *testing.T) {
	a := &fakePostAPI{pages: map[int]api.Page[models.Post]{
		1: {Items: posts("p1", "p2"), HasNextPage: false},
	}}
	f := New(a)
	_ = f.LoadMore(context.Background())

	a.mu.Lock()
	a.updated = models.Post{ID: "p2", Body: "post p2", Liked: true, LikeCount: 7}
	a.mu.Unlock()

	if err := f.ToggleLike(context.Background(), "p2"); err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}

	for _, p := range f.Posts() {
		if p.ID == "p2" {
			if !p.Liked || p.LikeCount != 7 {
				t.Errorf("expected server-confirmed state, got %+v", p)
			}
		}
		if p.ID == "p1" && p.Liked {
			t.Error("unrelated post must not change")
		}
	}
}

func TestFeed_ToggleLikeNoOptimisticFlip(t *testing.T) {
	a := &fakePostAPI{pages: map[int]api.Page[models.Post]{
		1: {Items: posts("p1"), HasNextPage: false},
	}}
	f := New(a)
	_ = f.LoadMore(context.Background())

	a.mu.Lock()
	a.likeErr = errors.New("like failed")
	a.mu.Unlock()

	if err := f.ToggleLike(context.Background(), "p1"); err == nil {
		t.Fatal("expected error")
	}

	// Nothing flipped before the server answered.
	if f.Posts()[0].Liked {
		t.Error("expected no local change on failed toggle")
	}
}

func TestFeed_RendersPostBodies(t *testing.T) {
	a := &fakePostAPI{pages: map[int]api.Page[models.Post]{
		1: {Items: []models.Post{
			{ID: "p1", Body: "Hello **World**"},
			{ID: "p2", Body: "<script>alert(1)</script>plain text"},
		}, HasNextPage: false},
	}}
	f := New(a)

	if err := f.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}

	all := f.Posts()
	if !strings.Contains(all[0].BodyHTML, "<strong>World</strong>") {
		t.Errorf("expected rendered markdown, got %q", all[0].BodyHTML)
	}
	if strings.Contains(all[1].BodyHTML, "<script>") {
		t.Errorf("script must be stripped, got %q", all[1].BodyHTML)
	}
	if !strings.Contains(all[1].BodyHTML, "plain text") {
		t.Errorf("surrounding text must survive, got %q", all[1].BodyHTML)
	}
	// The raw body is untouched for editing round-trips.
	if all[0].Body != "Hello **World**" {
		t.Errorf("raw body changed: %q", all[0].Body)
	}
}

func TestFeed_PageNumberAdvances(t *testing.T) {
	pages := map[int]api.Page[models.Post]{}
	for i := 1; i <= 3; i++ {
		pages[i] = api.Page[models.Post]{
			Items:       posts(fmt.Sprintf("p%d", i)),
			HasNextPage: i < 3,
			CurrentPage: i,
		}
	}
	f := New(&fakePostAPI{pages: pages})

	for i := 0; i < 3; i++ {
		if err := f.LoadMore(context.Background()); err != nil {
			t.Fatalf("LoadMore %d failed: %v", i+1, err)
		}
	}

	if got := len(f.Posts()); got != 3 {
		t.Errorf("expected 3 posts across 3 pages, got %d", got)
	}
}
