package streaming

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/animewatch/internal/catalog/store"
	"github.com/example/animewatch/internal/platform/auth"
	"github.com/example/animewatch/internal/platform/signing"
)

const (
	testRelayBase   = "https://watch.example.com/hls"
	testPlaylistURL = "https://cdn.example.com/stream/ep1/index.m3u8"
	testUID         = "user-42"
)

var testSigner = signing.New("test-signing-secret-32-bytes-ok!")

func futureExp() int64 { return time.Now().Add(time.Hour).Unix() }

func setupReq(method, target string, params map[string]string, userID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = auth.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func seedShowWithEpisode(t *testing.T, cs *store.InMemoryCatalogStore) (int64, int64) {
	t.Helper()
	show, err := cs.CreateShow(context.Background(), store.ShowInput{Title: "Frieren"})
	if err != nil {
		t.Fatalf("create show: %v", err)
	}
	ep, err := cs.AddEpisode(context.Background(), show.ID, store.EpisodeInput{
		SeasonNumber:  1,
		EpisodeNumber: 1,
		VideoURL:      testPlaylistURL,
	})
	if err != nil {
		t.Fatalf("add episode: %v", err)
	}
	return show.ID, ep.ID
}

func TestWatchEpisode_ReturnsSignedURL(t *testing.T) {
	cs := store.NewInMemoryCatalogStore()
	showID, epID := seedShowWithEpisode(t, cs)

	rr := httptest.NewRecorder()
	WatchEpisode(cs, testSigner, testRelayBase, nil).ServeHTTP(rr,
		setupReq(http.MethodGet, "/api/anime/1/episodes/1/watch", map[string]string{
			"show_id":    itoa(showID),
			"episode_id": itoa(epID),
		}, testUID))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp watchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(resp.SignedPlaybackURL, testRelayBase+"?") {
		t.Fatalf("expected relay URL, got %q", resp.SignedPlaybackURL)
	}

	// The signed URL must verify against the same signer.
	u, err := url.Parse(resp.SignedPlaybackURL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	rawURL, uid, exp, sig, err := signing.ExtractSigned(u.Query())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rawURL != testPlaylistURL || uid != testUID {
		t.Fatalf("unexpected signed params: url=%q uid=%q", rawURL, uid)
	}
	if !testSigner.Verify(rawURL, uid, exp, sig) {
		t.Fatal("signature should verify")
	}
}

func TestWatchEpisode_RequiresAuth(t *testing.T) {
	cs := store.NewInMemoryCatalogStore()
	showID, epID := seedShowWithEpisode(t, cs)

	rr := httptest.NewRecorder()
	WatchEpisode(cs, testSigner, testRelayBase, nil).ServeHTTP(rr,
		setupReq(http.MethodGet, "/api/anime/1/episodes/1/watch", map[string]string{
			"show_id":    itoa(showID),
			"episode_id": itoa(epID),
		}, ""))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestWatchEpisode_UnknownEpisode(t *testing.T) {
	cs := store.NewInMemoryCatalogStore()
	showID, _ := seedShowWithEpisode(t, cs)

	rr := httptest.NewRecorder()
	WatchEpisode(cs, testSigner, testRelayBase, nil).ServeHTTP(rr,
		setupReq(http.MethodGet, "/api/anime/1/episodes/999/watch", map[string]string{
			"show_id":    itoa(showID),
			"episode_id": "999",
		}, testUID))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestWatchMovie(t *testing.T) {
	cs := store.NewInMemoryCatalogStore()
	show, err := cs.CreateShow(context.Background(), store.ShowInput{Title: "Your Name", Type: "Movie"})
	if err != nil {
		t.Fatalf("create show: %v", err)
	}

	rr := httptest.NewRecorder()
	WatchMovie(cs, testSigner, testRelayBase, nil).ServeHTTP(rr,
		setupReq(http.MethodGet, "/api/anime/1/watch", map[string]string{"show_id": itoa(show.ID)}, testUID))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before a movie url is set, got %d", rr.Code)
	}

	if err := cs.SetMovieURL(context.Background(), show.ID, testPlaylistURL); err != nil {
		t.Fatalf("set movie url: %v", err)
	}
	rr = httptest.NewRecorder()
	WatchMovie(cs, testSigner, testRelayBase, nil).ServeHTTP(rr,
		setupReq(http.MethodGet, "/api/anime/1/watch", map[string]string{"show_id": itoa(show.ID)}, testUID))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRelay_RejectsMissingAndBadSignatures(t *testing.T) {
	h := Relay(testSigner, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/hls", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("missing params: expected 403, got %d", rr.Code)
	}

	signed := testSigner.Sign(testPlaylistURL, testUID, time.Now().Add(time.Hour))
	signed.Sig = "tampered"
	u, err := signing.BuildSignedURL("/hls", signed)
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, u, nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("tampered sig: expected 403, got %d", rr.Code)
	}
}

func TestRelay_RejectsExpired(t *testing.T) {
	signed := testSigner.Sign(testPlaylistURL, testUID, time.Now().Add(-time.Minute))
	u, err := signing.BuildSignedURL("/hls", signed)
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	rr := httptest.NewRecorder()
	Relay(testSigner, zap.NewNop()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, u, nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRewritePlaylist_CommentsAndEmptyLinesPassThrough(t *testing.T) {
	body := "#EXTM3U\n#EXT-X-VERSION:3\n\n#EXT-X-ENDLIST"
	got := RewritePlaylist(body, testPlaylistURL, testRelayBase, testSigner, testUID, futureExp())
	if got != body {
		t.Fatalf("expected comments/empty lines unchanged\nwant: %q\ngot:  %q", body, got)
	}
}

func TestRewritePlaylist_RelativeSegmentResolvedAndRelayed(t *testing.T) {
	body := "#EXTM3U\nseg0.ts"
	exp := futureExp()
	got := RewritePlaylist(body, testPlaylistURL, testRelayBase, testSigner, testUID, exp)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
	}
	if !strings.HasPrefix(lines[1], testRelayBase+"?") {
		t.Fatalf("segment line should start with relay URL: %q", lines[1])
	}

	u, err := url.Parse(lines[1])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rawURL, uid, gotExp, sig, err := signing.ExtractSigned(u.Query())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rawURL != "https://cdn.example.com/stream/ep1/seg0.ts" {
		t.Fatalf("segment should resolve against the playlist URL, got %q", rawURL)
	}
	if uid != testUID || gotExp != exp {
		t.Fatalf("uid/exp should carry over: uid=%q exp=%d", uid, gotExp)
	}
	if !testSigner.Verify(rawURL, uid, gotExp, sig) {
		t.Fatal("rewritten segment signature should verify")
	}
}

func TestRewritePlaylist_URIAttrRewritten(t *testing.T) {
	body := `#EXT-X-I-FRAME-STREAM-INF:BANDWIDTH=100,URI="iframe.m3u8"`
	got := RewritePlaylist(body, testPlaylistURL, testRelayBase, testSigner, testUID, futureExp())
	if !strings.Contains(got, testRelayBase) {
		t.Fatalf("URI attribute should point at the relay: %q", got)
	}
	if strings.Contains(got, `URI="iframe.m3u8"`) {
		t.Fatal("original URI value should be replaced")
	}
}

func TestRewritePlaylist_AbsoluteSegmentForwarded(t *testing.T) {
	body := "#EXTM3U\nhttps://other.cdn.net/ep1/seg0.ts"
	got := RewritePlaylist(body, testPlaylistURL, testRelayBase, testSigner, testUID, futureExp())
	lines := strings.Split(got, "\n")
	if !strings.Contains(lines[1], url.QueryEscape("https://other.cdn.net/ep1/seg0.ts")) {
		t.Fatalf("absolute URL should be forwarded through the relay: %q", lines[1])
	}
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
