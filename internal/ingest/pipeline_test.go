package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/okhotnikov/vk-news-sync/internal/storage"
	"github.com/okhotnikov/vk-news-sync/internal/vk"
)

type fakeStore struct {
	byVKPostID map[string]*storage.News
	bySlug     map[string]*storage.News
	created    []*storage.News

	failCreateForPostID string
	failLookups         bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byVKPostID: make(map[string]*storage.News),
		bySlug:     make(map[string]*storage.News),
	}
}

func (s *fakeStore) FindNewsByVKPostID(_ context.Context, vkPostID string) (*storage.News, error) {
	if s.failLookups {
		return nil, errors.New("store down")
	}

	return s.byVKPostID[vkPostID], nil
}

func (s *fakeStore) FindNewsBySlug(_ context.Context, slug string) (*storage.News, error) {
	if s.failLookups {
		return nil, errors.New("store down")
	}

	return s.bySlug[slug], nil
}

func (s *fakeStore) CreateNews(_ context.Context, n *storage.News) error {
	if n.VKPostID == s.failCreateForPostID {
		return errors.New("constraint violation")
	}

	s.byVKPostID[n.VKPostID] = n
	s.bySlug[n.Slug] = n
	s.created = append(s.created, n)

	return nil
}

func newTestPipeline(store Store) *Pipeline {
	logger := zerolog.Nop()

	return NewPipeline(store, -225463959, 200, &logger)
}

func TestPipelineRun_ImportsNewPosts(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	posts := []vk.Post{
		{ID: 101, Date: 1717000000, Text: "Первый пост о тренировках"},
		{ID: 100, Date: 1716900000, Text: "Второй пост о соревнованиях"},
	}

	result, err := p.Run(context.Background(), posts, "admin-1", false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 2 || result.Skipped != 0 || result.Checked != 2 {
		t.Errorf("result = %+v", result)
	}

	if len(store.created) != 2 {
		t.Fatalf("created %d records, want 2", len(store.created))
	}

	first := store.created[0]
	if first.VKPostID != "101" {
		t.Errorf("VKPostID = %q, want 101", first.VKPostID)
	}

	if first.AuthorID != "admin-1" {
		t.Errorf("AuthorID = %q", first.AuthorID)
	}

	if !first.Published {
		t.Error("record not published")
	}

	if first.PublishedAt.Unix() != 1717000000 {
		t.Errorf("PublishedAt = %v", first.PublishedAt)
	}

	if first.VKLink != "https://vk.com/club225463959?w=wall-225463959_101" {
		t.Errorf("VKLink = %q", first.VKLink)
	}
}

func TestPipelineRun_Idempotent(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	posts := []vk.Post{{ID: 55, Date: 1717000000, Text: "Пост, который уже видели"}}

	if _, err := p.Run(context.Background(), posts, "admin-1", false); err != nil {
		t.Fatalf("first Run error: %v", err)
	}

	result, err := p.Run(context.Background(), posts, "admin-1", false)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}

	if result.Imported != 0 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}

	if len(store.created) != 1 {
		t.Errorf("created %d records, want 1", len(store.created))
	}
}

func TestPipelineRun_EmptyTextSkipped(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	posts := []vk.Post{
		{ID: 2, Text: "   \n  "},
		{ID: 1, Text: "Настоящий пост с текстом"},
	}

	result, err := p.Run(context.Background(), posts, "admin-1", false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 1 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestPipelineRun_SlugCollisionProbing(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	// Same title three times: the slug gets -1 and -2 suffixes.
	posts := []vk.Post{
		{ID: 3, Date: 1717000000, Text: "Одинаковый заголовок"},
		{ID: 2, Date: 1716900000, Text: "Одинаковый заголовок"},
		{ID: 1, Date: 1716800000, Text: "Одинаковый заголовок"},
	}

	result, err := p.Run(context.Background(), posts, "admin-1", false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 3 {
		t.Fatalf("result = %+v", result)
	}

	slugs := []string{store.created[0].Slug, store.created[1].Slug, store.created[2].Slug}
	expected := []string{"одинаковый-заголовок", "одинаковый-заголовок-1", "одинаковый-заголовок-2"}

	for i := range expected {
		if slugs[i] != expected[i] {
			t.Errorf("slugs[%d] = %q, want %q", i, slugs[i], expected[i])
		}
	}
}

func TestPipelineRun_PartialFailureContinues(t *testing.T) {
	store := newFakeStore()
	store.failCreateForPostID = "3"
	p := newTestPipeline(store)

	posts := []vk.Post{
		{ID: 5, Text: "Пятый пост партии"},
		{ID: 4, Text: "Четвёртый пост партии"},
		{ID: 3, Text: "Третий пост, на котором сбой"},
		{ID: 2, Text: "Второй пост партии"},
		{ID: 1, Text: "Первый пост партии"},
	}

	result, err := p.Run(context.Background(), posts, "admin-1", false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 4 {
		t.Errorf("Imported = %d, want 4", result.Imported)
	}

	for _, id := range []string{"5", "4", "2", "1"} {
		if _, ok := store.byVKPostID[id]; !ok {
			t.Errorf("post %s not persisted", id)
		}
	}

	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want one entry", result.Errors)
	}

	if result.Errors[0] != fmt.Sprintf("post %d: %v", 3, "create record: constraint violation") {
		t.Errorf("Errors[0] = %q", result.Errors[0])
	}
}

func TestPipelineRun_StopAtSeen(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	// Import post 100 first, then sync a newest-first batch where it
	// appears in the middle: the run must stop there.
	seed := []vk.Post{{ID: 100, Text: "Уже импортированный пост"}}
	if _, err := p.Run(context.Background(), seed, "admin-1", false); err != nil {
		t.Fatalf("seed Run error: %v", err)
	}

	posts := []vk.Post{
		{ID: 102, Text: "Самый новый пост"},
		{ID: 101, Text: "Новый пост"},
		{ID: 100, Text: "Уже импортированный пост"},
		{ID: 99, Text: "Старый пост, до которого не дойдём"},
	}

	result, err := p.Run(context.Background(), posts, "admin-1", true)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}

	if _, seen := store.byVKPostID["99"]; seen {
		t.Error("post behind the seen marker was imported")
	}
}

func TestPipelineRun_StopAtSeenContinuesPastEmpty(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	// Photo-only posts have no text. They must not halt a daemon cycle:
	// only an already-imported post says the rest of the batch is old.
	posts := []vk.Post{
		{ID: 102, Text: "Новый пост с текстом"},
		{ID: 101, Text: ""},
		{ID: 100, Text: "Старший пост, ещё не импортированный"},
	}

	result, err := p.Run(context.Background(), posts, "admin-1", true)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 2 || result.Skipped != 1 || result.Checked != 3 {
		t.Errorf("result = %+v", result)
	}

	if _, ok := store.byVKPostID["100"]; !ok {
		t.Error("post behind the empty post was not imported")
	}
}

func TestPipelineRun_FullScanImportsBehindSeen(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	seed := []vk.Post{{ID: 100, Text: "Уже импортированный пост"}}
	if _, err := p.Run(context.Background(), seed, "admin-1", false); err != nil {
		t.Fatalf("seed Run error: %v", err)
	}

	posts := []vk.Post{
		{ID: 101, Text: "Новый пост"},
		{ID: 100, Text: "Уже импортированный пост"},
		{ID: 99, Text: "Старый пост, видимый задним числом"},
	}

	result, err := p.Run(context.Background(), posts, "admin-1", false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}

	if _, seen := store.byVKPostID["99"]; !seen {
		t.Error("full scan skipped an older unseen post")
	}
}

func TestPipelineRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(newFakeStore())

	_, err := p.Run(ctx, []vk.Post{{ID: 1, Text: "текст"}}, "admin-1", false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPipelineRun_TitleFallback(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	// Text long enough to survive the empty check but cleaning to
	// nothing usable for a title.
	posts := []vk.Post{{ID: 42, Text: "https://only-a-link.test/page"}}

	result, err := p.Run(context.Background(), posts, "admin-1", false)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Imported != 1 {
		t.Fatalf("result = %+v", result)
	}

	record := store.created[0]
	if record.Title != "Post #42" {
		t.Errorf("Title = %q, want Post #42", record.Title)
	}

	if record.Slug != "post-42" {
		t.Errorf("Slug = %q, want post-42", record.Slug)
	}

	if record.Content != "Post #42" {
		t.Errorf("Content = %q", record.Content)
	}
}

func TestUniqueSlug_Exhaustion(t *testing.T) {
	store := newFakeStore()

	store.bySlug["base"] = &storage.News{Slug: "base"}
	for i := 1; i <= maxSlugProbes; i++ {
		slug := "base-" + strconv.Itoa(i)
		store.bySlug[slug] = &storage.News{Slug: slug}
	}

	p := newTestPipeline(store)

	_, err := p.uniqueSlug(context.Background(), "base")
	if !errors.Is(err, ErrSlugSpaceExhausted) {
		t.Fatalf("err = %v, want ErrSlugSpaceExhausted", err)
	}
}
