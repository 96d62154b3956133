package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/orbit/internal/platform/auth"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/idempotency"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/store"
)

var testSecret = []byte("test-secret")

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	stores store.Stores
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := store.NewInMemory()
	idem, err := idempotency.NewStore("", nil, time.Hour, false)
	if err != nil {
		t.Fatalf("idempotency: %v", err)
	}
	r := chi.NewRouter()
	Mount(r, Deps{
		Stores:      st,
		Objects:     objects.NewMemoryStore("http://cdn.test"),
		Idempotency: idem,
		Verifier:    auth.JWTVerifier{Secret: testSecret},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv, stores: st}
}

func (a *testAPI) do(method, path, userID string, body []byte, headers map[string]string) *http.Response {
	a.t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, bytes.NewReader(body))
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		tok, err := auth.Issue(testSecret, userID, "user", time.Hour)
		if err != nil {
			a.t.Fatalf("issue: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	a.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestMount_WritesRequireToken(t *testing.T) {
	a := newTestAPI(t)
	resp := a.do(http.MethodPost, "/v1/posts", "", []byte(`{"content":"x"}`), nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp = a.do(http.MethodGet, "/v1/posts", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected public read, got %d", resp.StatusCode)
	}
}

func TestMount_CreatePostReplaysIdempotencyKey(t *testing.T) {
	a := newTestAPI(t)
	h := map[string]string{"Idempotency-Key": "tmp-1"}

	first := a.do(http.MethodPost, "/v1/posts", "user-a", []byte(`{"content":"hello"}`), h)
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.StatusCode)
	}
	var p1 postResponse
	decodeBody(t, first, &p1)

	second := a.do(http.MethodPost, "/v1/posts", "user-a", []byte(`{"content":"hello"}`), h)
	if second.StatusCode != http.StatusCreated || second.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed 201, got %d %q", second.StatusCode, second.Header.Get("Idempotent-Replayed"))
	}
	var p2 postResponse
	decodeBody(t, second, &p2)
	if p1.ID != p2.ID {
		t.Fatalf("expected same post, got %q and %q", p1.ID, p2.ID)
	}

	list, _ := a.stores.Posts.List(t.Context(), domain.Page{})
	if len(list) != 1 {
		t.Fatalf("expected one stored post, got %d", len(list))
	}
}

func TestMount_CommentFlow(t *testing.T) {
	a := newTestAPI(t)
	p := seedPost(t, a.stores, "user-a")

	resp := a.do(http.MethodPost, "/v1/posts/"+p.ID+"/comments", "user-b", []byte(`{"content":"root"}`), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var root commentResponse
	decodeBody(t, resp, &root)

	body := []byte(`{"content":"reply","parent_comment_id":"` + root.ID + `"}`)
	resp = a.do(http.MethodPost, "/v1/posts/"+p.ID+"/comments", "user-a", body, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for reply, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodDelete, "/v1/comments/"+root.ID, "user-b", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodGet, "/v1/posts/"+p.ID+"/comments", "", nil, nil)
	var list commentsResponse
	decodeBody(t, resp, &list)
	if len(list.Comments) != 0 {
		t.Fatalf("expected cascade to remove the reply, got %d comments", len(list.Comments))
	}
}

func TestMount_Likes(t *testing.T) {
	a := newTestAPI(t)
	p := seedPost(t, a.stores, "user-a")

	for i := 0; i < 2; i++ {
		resp := a.do(http.MethodPut, "/v1/likes/"+p.ID, "user-b", nil, nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", resp.StatusCode)
		}
	}
	resp := a.do(http.MethodPut, "/v1/likes/missing", "user-b", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown post, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodGet, "/v1/likes", "user-b", nil, nil)
	var liked likesResponse
	decodeBody(t, resp, &liked)
	if len(liked.PostIDs) != 1 || liked.PostIDs[0] != p.ID {
		t.Fatalf("unexpected likes %+v", liked)
	}

	resp = a.do(http.MethodGet, "/v1/likes", "", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without user, got %d", resp.StatusCode)
	}

	a.do(http.MethodDelete, "/v1/likes/"+p.ID, "user-b", nil, nil)
	ids, _ := a.stores.Likes.ListByUser(t.Context(), "user-b")
	if len(ids) != 0 {
		t.Fatalf("expected unlike, got %v", ids)
	}
}

func TestMount_Profiles(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodGet, "/v1/me", "user-a", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before setup, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodPut, "/v1/me", "user-a", []byte(`{"bio":"hi"}`), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without username, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodPut, "/v1/me", "user-a", []byte(`{"username":"Alice","bio":"hi"}`), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var me profileResponse
	decodeBody(t, resp, &me)
	if me.Username != "alice" || me.AvatarSrc != objects.DefaultAvatar {
		t.Fatalf("unexpected profile %+v", me)
	}

	resp = a.do(http.MethodPut, "/v1/me", "user-b", []byte(`{"username":"alice"}`), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for taken username, got %d", resp.StatusCode)
	}
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &env)
	if env.Error.Code != "USERNAME_TAKEN" {
		t.Fatalf("expected USERNAME_TAKEN, got %q", env.Error.Code)
	}

	resp = a.do(http.MethodPut, "/v1/me", "user-a", []byte(`{"avatar_url":"user-a/pic.png"}`), nil)
	decodeBody(t, resp, &me)
	if me.Username != "alice" || me.Bio != "hi" {
		t.Fatalf("expected partial update to keep fields, got %+v", me)
	}
	if me.AvatarSrc != "http://cdn.test/v1/objects/avatars/user-a/pic.png" {
		t.Fatalf("unexpected avatar src %q", me.AvatarSrc)
	}

	resp = a.do(http.MethodGet, "/v1/profiles/ALICE", "", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 by username, got %d", resp.StatusCode)
	}
}

func TestMount_Follows(t *testing.T) {
	a := newTestAPI(t)

	resp := a.do(http.MethodPut, "/v1/follows/user-b", "user-a", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = a.do(http.MethodPut, "/v1/follows/user-a", "user-a", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for self-follow, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodGet, "/v1/follows/user-b/followers/user-a", "", nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for follower, got %d", resp.StatusCode)
	}
	resp = a.do(http.MethodGet, "/v1/follows/user-a/followers/user-b", "", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for non-follower, got %d", resp.StatusCode)
	}

	resp = a.do(http.MethodGet, "/v1/follows/user-b/counts", "", nil, nil)
	var c domain.FollowCounts
	decodeBody(t, resp, &c)
	if c.Followers != 1 || c.Following != 0 {
		t.Fatalf("unexpected counts %+v", c)
	}

	a.do(http.MethodDelete, "/v1/follows/user-b", "user-a", nil, nil)
	resp = a.do(http.MethodGet, "/v1/follows/user-b/counts", "", nil, nil)
	decodeBody(t, resp, &c)
	if c.Followers != 0 {
		t.Fatalf("expected unfollow, got %+v", c)
	}
}

func TestMount_Objects(t *testing.T) {
	a := newTestAPI(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	resp := a.do(http.MethodPost, "/v1/objects/avatars", "user-a", png, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var up uploadResponse
	decodeBody(t, resp, &up)
	if !strings.HasPrefix(up.Path, "user-a/") || !strings.HasSuffix(up.Path, ".png") {
		t.Fatalf("unexpected path %q", up.Path)
	}

	resp = a.do(http.MethodGet, "/v1/objects/avatars/"+up.Path, "", nil, nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp = a.do(http.MethodPost, "/v1/objects/avatars", "user-a", []byte("plain text"), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for text upload, got %d", resp.StatusCode)
	}
	resp = a.do(http.MethodPost, "/v1/objects/secrets", "user-a", png, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown bucket, got %d", resp.StatusCode)
	}
	resp = a.do(http.MethodGet, "/v1/objects/avatars/user-a/missing.png", "", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
