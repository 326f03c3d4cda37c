package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

type fakeStrategy struct {
	name  string
	posts []vk.Post
	err   error
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) FetchPosts(_ context.Context, count, offset int) ([]vk.Post, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	if offset >= len(f.posts) {
		return nil, nil
	}

	end := offset + count
	if end > len(f.posts) {
		end = len(f.posts)
	}

	return f.posts[offset:end], nil
}

func makePosts(n int) []vk.Post {
	posts := make([]vk.Post, n)
	for i := range posts {
		posts[i] = vk.Post{ID: int64(n - i), Text: "post text"}
	}

	return posts
}

func newTestFetcher(strategies ...Strategy) *Fetcher {
	logger := zerolog.Nop()

	return NewFetcher(&logger, time.Millisecond, strategies...)
}

func TestFetcher_FirstStrategyWins(t *testing.T) {
	first := &fakeStrategy{name: "first", posts: makePosts(3)}
	second := &fakeStrategy{name: "second", posts: makePosts(5)}

	fetcher := newTestFetcher(first, second)

	posts, err := fetcher.FetchPosts(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("FetchPosts error: %v", err)
	}

	if len(posts) != 3 {
		t.Errorf("got %d posts, want 3", len(posts))
	}

	if second.calls != 0 {
		t.Errorf("second strategy called %d times, want 0", second.calls)
	}
}

func TestFetcher_FallsThroughOnError(t *testing.T) {
	first := &fakeStrategy{name: "first", err: errors.New("boom")}
	second := &fakeStrategy{name: "second", posts: makePosts(2)}

	fetcher := newTestFetcher(first, second)

	posts, err := fetcher.FetchPosts(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("FetchPosts error: %v", err)
	}

	if len(posts) != 2 {
		t.Errorf("got %d posts, want 2", len(posts))
	}

	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
}

func TestFetcher_EmptyResultFallsThrough(t *testing.T) {
	first := &fakeStrategy{name: "first"}
	second := &fakeStrategy{name: "second", posts: makePosts(1)}

	fetcher := newTestFetcher(first, second)

	posts, err := fetcher.FetchPosts(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("FetchPosts error: %v", err)
	}

	if len(posts) != 1 {
		t.Errorf("got %d posts, want 1", len(posts))
	}
}

func TestFetcher_ThirdStrategyWinsSkippingFourth(t *testing.T) {
	api := &fakeStrategy{name: "api", err: errors.New("blocked")}
	heuristic := &fakeStrategy{name: "heuristic-html"}
	rss := &fakeStrategy{name: "rss", posts: makePosts(3)}
	fullHTML := &fakeStrategy{name: "full-html", posts: makePosts(9)}

	fetcher := newTestFetcher(api, heuristic, rss, fullHTML)

	posts, err := fetcher.FetchPosts(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("FetchPosts error: %v", err)
	}

	if len(posts) != 3 {
		t.Errorf("got %d posts, want the 3 RSS items", len(posts))
	}

	if fullHTML.calls != 0 {
		t.Errorf("full HTML strategy called %d times, want 0", fullHTML.calls)
	}
}

func TestFetcher_AllStrategiesFail(t *testing.T) {
	first := &fakeStrategy{name: "first", err: errors.New("down")}
	second := &fakeStrategy{name: "second", err: errors.New("also down")}

	fetcher := newTestFetcher(first, second)

	_, err := fetcher.FetchPosts(context.Background(), 10, 0)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
}

func TestFetcher_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := &fakeStrategy{name: "first", err: errors.New("canceled mid-flight")}
	fetcher := newTestFetcher(first)

	_, err := fetcher.FetchPosts(ctx, 10, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestFetcher_FetchAllPaginates(t *testing.T) {
	strategy := &fakeStrategy{name: "api", posts: makePosts(25)}
	fetcher := newTestFetcher(strategy)

	posts, err := fetcher.FetchAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}

	if len(posts) != 25 {
		t.Errorf("got %d posts, want 25", len(posts))
	}

	if strategy.calls != 3 {
		t.Errorf("strategy called %d times, want 3", strategy.calls)
	}
}

func TestFetcher_FetchAllHonorsLimit(t *testing.T) {
	strategy := &fakeStrategy{name: "api", posts: makePosts(25)}
	fetcher := newTestFetcher(strategy)

	posts, err := fetcher.FetchAll(context.Background(), 10, 15)
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}

	if len(posts) != 15 {
		t.Errorf("got %d posts, want 15", len(posts))
	}
}

func TestFetcher_FetchAllKeepsPartialResult(t *testing.T) {
	// Fails once the first page is exhausted; the pages collected so far
	// must survive.
	strategy := &fakeStrategy{name: "api", posts: makePosts(10)}
	fetcher := newTestFetcher(strategy)

	posts, err := fetcher.FetchAll(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}

	if len(posts) != 10 {
		t.Errorf("got %d posts, want 10", len(posts))
	}
}
