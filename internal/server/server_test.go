package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/folio/internal/arena"
	"github.com/voyagen/folio/internal/config"
	"github.com/voyagen/folio/internal/embedding"
	"github.com/voyagen/folio/internal/fetcher"
	"github.com/voyagen/folio/internal/models"
	"github.com/voyagen/folio/internal/sanity"
	"github.com/voyagen/folio/internal/service"
	"github.com/voyagen/folio/internal/shuffle"
	"github.com/voyagen/folio/internal/store"
)

// --- fakes ---

type fakeArena struct {
	lastContents arena.ContentsOptions
	lastPage     arena.PageOptions
	lastPer      int
}

func notFound(path string) error {
	return &fetcher.StatusError{StatusCode: http.StatusNotFound, URL: path, Message: "Not Found"}
}

func (f *fakeArena) GetChannel(_ context.Context, id string) (*models.Channel, error) {
	switch id {
	case "missing":
		return nil, notFound("/channels/missing")
	case "down":
		return nil, &fetcher.StatusError{StatusCode: http.StatusServiceUnavailable, Message: "maintenance"}
	case "7":
		return &models.Channel{ID: 7, Slug: "influences", Title: "Influences"}, nil
	}
	return &models.Channel{ID: 7, Slug: id, Title: "Influences"}, nil
}

func (f *fakeArena) GetChannelContents(_ context.Context, id string, opts arena.ContentsOptions) (*models.ChannelPage, error) {
	f.lastContents = opts
	return &models.ChannelPage{
		Channel:    models.Channel{ID: 7, Slug: id, Contents: []models.Block{{ID: 1, Content: models.TextContent{Content: "a"}}}},
		Page:       1,
		Per:        20,
		TotalPages: 1,
	}, nil
}

func (f *fakeArena) GetAllChannelContents(_ context.Context, id string, per int) ([]models.Block, error) {
	f.lastPer = per
	if id == "missing" {
		return nil, fmt.Errorf("fetch page 1: %w", notFound("/channels/missing/contents"))
	}
	return []models.Block{
		{ID: 1, Content: models.TextContent{Content: "a"}},
		{ID: 2, Content: models.ImageContent{Image: &models.Image{Filename: "b.jpg"}}},
	}, nil
}

func (f *fakeArena) GetBlock(_ context.Context, id int64) (*models.Block, error) {
	return &models.Block{ID: id, Content: models.TextContent{Content: "block"}}, nil
}

func (f *fakeArena) SearchChannels(_ context.Context, q string, opts arena.PageOptions) (*models.ChannelList, error) {
	f.lastPage = opts
	return &models.ChannelList{Channels: []models.Channel{{ID: 1, Title: q}}, TotalPages: 1}, nil
}

func (f *fakeArena) GetUser(_ context.Context, slug string) (*models.User, error) {
	return &models.User{ID: 3, Slug: slug}, nil
}

func (f *fakeArena) GetUserChannels(_ context.Context, slug string, opts arena.PageOptions) (*models.ChannelList, error) {
	f.lastPage = opts
	return &models.ChannelList{Channels: []models.Channel{{ID: 5}}, TotalPages: 1}, nil
}

type fakeCMS struct{}

func (fakeCMS) ListMedia(context.Context) ([]models.Media, error) {
	out := make([]models.Media, 0, 10)
	for i := range 10 {
		m := models.Media{ID: fmt.Sprintf("m%d", i), MediaType: models.MediaKindImage}
		if i%2 == 1 {
			m.MediaType = models.MediaKindVideo
			m.MuxPlaybackID = fmt.Sprintf("pb%d", i)
		}
		out = append(out, m)
	}
	return out, nil
}

func (fakeCMS) GetMedia(_ context.Context, slug string) (*models.Media, error) {
	if slug == "missing" {
		return nil, fmt.Errorf("GetMedia %s: %w", slug, sanity.ErrNotFound)
	}
	return &models.Media{ID: "m1", Title: "Dune", Slug: models.Slug{Current: slug}}, nil
}

func (fakeCMS) ListLogs(context.Context) ([]models.Log, error) {
	return []models.Log{{ID: "l1", Title: "Week one", Date: "2024-03-05"}, {ID: "l2", Date: "soon"}}, nil
}

func (fakeCMS) GetLog(_ context.Context, slug string) (*models.Log, error) {
	return &models.Log{ID: "l1", Slug: models.Slug{Current: slug}, Date: "2024-03-05"}, nil
}

func (fakeCMS) ImageURLFor(ref string) (string, error) {
	return sanity.NewClient("p9yhyed1", "production").ImageURLFor(ref)
}

type memStore struct {
	snaps map[string]*store.Snapshot
}

func (m *memStore) SaveSnapshot(_ context.Context, ch *models.Channel, blocks []models.Block) (int64, error) {
	m.snaps[ch.Slug] = &store.Snapshot{Channel: *ch, Blocks: blocks, TakenAt: time.Now()}
	return 1, nil
}

func (m *memStore) GetSnapshot(_ context.Context, slug string) (*store.Snapshot, error) {
	s, ok := m.snaps[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (m *memStore) ListSnapshots(context.Context) ([]store.SnapshotSummary, error) {
	var out []store.SnapshotSummary
	for slug, s := range m.snaps {
		out = append(out, store.SnapshotSummary{Slug: slug, BlockCount: len(s.Blocks)})
	}
	return out, nil
}

func (m *memStore) DeleteSnapshot(_ context.Context, slug string) error {
	if _, ok := m.snaps[slug]; !ok {
		return store.ErrNotFound
	}
	delete(m.snaps, slug)
	return nil
}

// --- harness ---

type harness struct {
	arena *fakeArena
	store *memStore
	srv   *Server
}

func newHarness(t *testing.T, withStore bool) *harness {
	t.Helper()
	h := &harness{arena: &fakeArena{}}
	deps := Deps{Arena: h.arena, CMS: fakeCMS{}, Seed: shuffle.NewSeed()}
	if withStore {
		h.store = &memStore{snaps: map[string]*store.Snapshot{}}
		deps.Store = h.store
		deps.Syncer = service.NewSyncer(h.arena, h.store, nil, nil)
	}
	h.srv = New(&config.Config{ServerPort: "0"}, deps, nil)
	return h
}

func (h *harness) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- tests ---

func TestHealth(t *testing.T) {
	h := newHarness(t, false)
	rec := h.do(t, http.MethodGet, "/api/health")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["snapshots"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	h := newHarness(t, false)
	rec := h.do(t, http.MethodOptions, "/api/media")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestArenaRoutes(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/arena/channels/influences")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Influences", decode[models.Channel](t, rec).Title)

	rec = h.do(t, http.MethodGet, "/api/arena/channels/influences/contents?page=2&per=5&sort=updated_at&direction=desc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, arena.ContentsOptions{Page: 2, Per: 5, Sort: arena.SortUpdatedAt, Direction: arena.Desc}, h.arena.lastContents)

	rec = h.do(t, http.MethodGet, "/api/arena/channels/influences/all?per=50")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Contents []models.Block `json:"contents"`
		Length   int            `json:"length"`
	}](t, rec)
	assert.Equal(t, 2, all.Length)
	assert.Equal(t, models.ClassImage, all.Contents[1].Class())
	assert.Equal(t, 50, h.arena.lastPer)

	rec = h.do(t, http.MethodGet, "/api/arena/blocks/99")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(99), decode[models.Block](t, rec).ID)

	rec = h.do(t, http.MethodGet, "/api/arena/search/channels?q=brutalism&per=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, arena.PageOptions{Per: 10}, h.arena.lastPage)

	rec = h.do(t, http.MethodGet, "/api/arena/users/ana")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana", decode[models.User](t, rec).Slug)

	rec = h.do(t, http.MethodGet, "/api/arena/users/ana/channels?page=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, arena.PageOptions{Page: 3}, h.arena.lastPage)
}

func TestArenaRoutes_BadInput(t *testing.T) {
	h := newHarness(t, false)

	for _, target := range []string{
		"/api/arena/channels/x/contents?sort=title",
		"/api/arena/channels/x/contents?direction=up",
		"/api/arena/channels/x/contents?page=0",
		"/api/arena/channels/x/contents?per=abc",
		"/api/arena/channels/x/all?per=500",
		"/api/arena/blocks/not-a-number",
		"/api/arena/search/channels",
	} {
		t.Run(target, func(t *testing.T) {
			rec := h.do(t, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, http.StatusBadRequest, decode[APIError](t, rec).Status)
		})
	}
}

func TestArenaRoutes_UpstreamErrors(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/arena/channels/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/arena/channels/missing/all")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/arena/channels/down")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[APIError](t, rec).Detail, "maintenance")
}

func TestListMedia(t *testing.T) {
	h := newHarness(t, false)

	type listing struct {
		Media []models.Media `json:"media"`
		Total int            `json:"total"`
		Seed  *int64         `json:"seed"`
	}

	rec := h.do(t, http.MethodGet, "/api/media")
	require.Equal(t, http.StatusOK, rec.Code)
	plain := decode[listing](t, rec)
	assert.Equal(t, 10, plain.Total)
	assert.Nil(t, plain.Seed)
	assert.Equal(t, "m0", plain.Media[0].ID)

	rec = h.do(t, http.MethodGet, "/api/media?type=video")
	videos := decode[listing](t, rec)
	assert.Equal(t, 5, videos.Total)
	for _, m := range videos.Media {
		assert.True(t, m.IsVideo())
	}

	first := decode[listing](t, h.do(t, http.MethodGet, "/api/media?shuffle=true"))
	second := decode[listing](t, h.do(t, http.MethodGet, "/api/media?shuffle=true"))
	require.NotNil(t, first.Seed)
	assert.Equal(t, first.Media, second.Media, "same seed, same order")
	assert.ElementsMatch(t, plain.Media, first.Media)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/media?type=audio").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/media?shuffle=maybe").Code)
}

func TestReshuffle(t *testing.T) {
	h := newHarness(t, false)
	before := h.srv.deps.Seed.Value()

	rec := h.do(t, http.MethodPost, "/api/shuffle")
	require.Equal(t, http.StatusOK, rec.Code)
	seed := decode[map[string]int64](t, rec)["seed"]
	assert.Greater(t, seed, before)
	assert.Equal(t, seed, h.srv.deps.Seed.Value())
}

func TestGetMedia_NotFound(t *testing.T) {
	h := newHarness(t, false)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/media/dune").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/media/missing").Code)
}

func TestLogs_FormatDates(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/logs")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]map[string]any](t, rec)
	require.Len(t, logs, 2)
	assert.Equal(t, "March 5, 2024", logs[0]["date_display"])
	assert.True(t, strings.HasSuffix(logs[0]["date_relative"].(string), "ago"))
	assert.Equal(t, "", logs[1]["date_display"])
	assert.Equal(t, "", logs[1]["date_relative"])

	rec = h.do(t, http.MethodGet, "/api/logs/week-one")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "March 5, 2024", decode[map[string]any](t, rec)["date_display"])
}

func TestImageSrcset(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/images/srcset?ref=image-abc-2000x3000-jpg&width=800&dpr=2")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	base := "https://cdn.sanity.io/images/p9yhyed1/production/abc-2000x3000.jpg"
	assert.Equal(t, base+"?w=800&auto=format&q=75&fit=clip&dpr=2", body["src"])
	assert.True(t, strings.HasPrefix(body["srcset"], base+"?w=400&auto=format&q=75&fit=clip&dpr=2 400w, "))
	assert.True(t, strings.HasSuffix(body["srcset"], " 4000w"))

	rec = h.do(t, http.MethodGet, "/api/images/srcset?url=https://cdn.example.com/a.jpg")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example.com/a.jpg?w=1200&auto=format&q=80&fit=clip", decode[map[string]string](t, rec)["src"])

	for _, dpr := range []string{"1e20", "Inf"} {
		rec = h.do(t, http.MethodGet, "/api/images/srcset?url=https://cdn.example.com/a.jpg&dpr="+dpr)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://cdn.example.com/a.jpg?w=1200&auto=format&q=70&fit=clip&dpr=3", decode[map[string]string](t, rec)["src"], dpr)
	}
}

func TestImageSrcset_BadInput(t *testing.T) {
	h := newHarness(t, false)

	for _, target := range []string{
		"/api/images/srcset",
		"/api/images/srcset?url=ftp://x/a.jpg",
		"/api/images/srcset?ref=nope",
		"/api/images/srcset?url=https://x/a.jpg&ref=image-abc-1x1-png",
		"/api/images/srcset?url=https://x/a.jpg&quality=101",
		"/api/images/srcset?url=https://x/a.jpg&fit=stretch",
		"/api/images/srcset?url=https://x/a.jpg&dpr=-1",
		"/api/images/srcset?url=https://x/a.jpg&dpr=NaN",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, target).Code)
		})
	}
}

func TestMuxURLs(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/mux/pb42?width=200&height=200&time=2.5&lang=en")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)

	assert.Equal(t, "https://image.mux.com/pb42/thumbnail.jpg?width=200&time=2.5&height=200&fit_mode=crop", body["thumbnail"])
	assert.Contains(t, body["thumbnail_srcset"], "width=320&time=0&height=320&fit_mode=crop 320w")
	assert.Equal(t, "https://image.mux.com/pb42/thumbnail.jpg?width=200&height=200&time=2.5", body["poster"])
	assert.Equal(t, "https://image.mux.com/pb42/animated.gif?width=200&fps=15", body["animated"])
	assert.Equal(t, "https://stream.mux.com/pb42.m3u8?default_subtitles_lang=en", body["stream"])

	rec = h.do(t, http.MethodGet, "/api/mux/pb42")
	body = decode[map[string]string](t, rec)
	assert.NotContains(t, body["thumbnail"], "fit_mode")
	assert.Equal(t, "https://stream.mux.com/pb42.m3u8", body["stream"])

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/mux/pb42?fps=60").Code)
}

func TestSnapshots_Disabled(t *testing.T) {
	h := newHarness(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodGet, "/api/snapshots").Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodPost, "/api/snapshots/x").Code)
}

func TestSnapshots_Lifecycle(t *testing.T) {
	h := newHarness(t, true)

	// Without Redis the sync runs inline.
	rec := h.do(t, http.MethodPost, "/api/snapshots/influences?per=50")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[service.SyncResult](t, rec)
	assert.Equal(t, 2, res.Blocks)
	assert.Equal(t, 50, h.arena.lastPer)

	rec = h.do(t, http.MethodGet, "/api/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]store.SnapshotSummary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].BlockCount)

	rec = h.do(t, http.MethodGet, "/api/snapshots/influences")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[struct {
		Blocks  []models.Block `json:"blocks"`
		Syncing bool           `json:"syncing"`
	}](t, rec)
	assert.Len(t, snap.Blocks, 2)
	assert.False(t, snap.Syncing)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/snapshots/influences").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/snapshots/influences").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/api/snapshots/influences").Code)
}

func TestSnapshots_CreateByNumericID(t *testing.T) {
	h := newHarness(t, true)

	rec := h.do(t, http.MethodPost, "/api/snapshots/7")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "influences", decode[service.SyncResult](t, rec).Slug)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/snapshots/influences").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/snapshots/7").Code)
}

func TestSnapshots_UpstreamMissing(t *testing.T) {
	h := newHarness(t, true)
	rec := h.do(t, http.MethodPost, "/api/snapshots/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, h.store.snaps)
}

func TestEmptySnapshotList(t *testing.T) {
	h := newHarness(t, true)
	rec := h.do(t, http.MethodGet, "/api/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestDocs(t *testing.T) {
	h := newHarness(t, false)

	rec := h.do(t, http.MethodGet, "/api/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")

	rec = h.do(t, http.MethodGet, "/api/docs/openapi.yaml")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi:")
}

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, texts []string, _ string) ([][]float32, error) {
	return [][]float32{{1, 0}}, nil
}

func (constEmbedder) EmbedBatch(ctx context.Context, texts []string, it string, _ int, _ embedding.ProgressFunc) ([][]float32, error) {
	return nil, nil
}

func (constEmbedder) Model() string { return "const" }

type oneMatch struct{ opts store.SearchOptions }

func (o *oneMatch) SaveEmbeddings(context.Context, int64, string, []store.BlockEmbedding) error {
	return nil
}

func (o *oneMatch) SearchBlocks(_ context.Context, _ []float32, opts store.SearchOptions) ([]store.BlockMatch, error) {
	o.opts = opts
	return []store.BlockMatch{{
		Channel: "influences",
		Block:   models.Block{ID: 4, Content: models.TextContent{Content: "concrete"}},
		Score:   0.87,
	}}, nil
}

func TestSearchSnapshots(t *testing.T) {
	h := newHarness(t, true)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodGet, "/api/snapshots/search?q=x").Code)

	vs := &oneMatch{}
	h.srv.deps.Search = service.NewSearcher(constEmbedder{}, vs)

	rec := h.do(t, http.MethodGet, "/api/snapshots/search?q=brutalism&channel=influences&limit=5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Matches []store.BlockMatch `json:"matches"`
	}](t, rec)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, models.TextContent{Content: "concrete"}, body.Matches[0].Block.Content)
	assert.Equal(t, store.SearchOptions{Channel: "influences", Limit: 5}, vs.opts)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/snapshots/search").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/api/snapshots/search?q=x&limit=0").Code)
}
