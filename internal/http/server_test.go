package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/jxr/internal/logging"
	"github.com/fyrsmithlabs/jxr/internal/ripgrep"
	"github.com/fyrsmithlabs/jxr/internal/ripgrep/ripgreptest"
	"github.com/fyrsmithlabs/jxr/internal/search"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const engineOutput = `{"type":"begin","data":{"path":{"text":"src/foo.rs"}}}
{"type":"match","data":{"path":{"text":"src/foo.rs"},"lines":{"text":"const A: u8 = 1;\n"},"line_number":1,"absolute_offset":0,"submatches":[{"match":{"text":"const"},"start":0,"end":5}]}}
{"type":"match","data":{"path":{"text":"src/foo.rs"},"lines":{"text":"const B: u8 = 2;\n"},"line_number":2,"absolute_offset":17,"submatches":[{"match":{"text":"const"},"start":0,"end":5}]}}
{"type":"end","data":{"path":{"text":"src/foo.rs"},"binary_offset":null,"stats":{"elapsed":{"secs":0,"nanos":10,"human":"0s"},"searches":1,"searches_with_match":1,"bytes_searched":34,"bytes_printed":400,"matched_lines":2,"matches":2}}}
{"type":"begin","data":{"path":{"text":"src/bar.rs"}}}
{"type":"match","data":{"path":{"text":"src/bar.rs"},"lines":{"text":"const C: u8 = 3;\n"},"line_number":1,"absolute_offset":0,"submatches":[{"match":{"text":"const"},"start":0,"end":5}]}}
{"type":"end","data":{"path":{"text":"src/bar.rs"},"binary_offset":null,"stats":{"elapsed":{"secs":0,"nanos":10,"human":"0s"},"searches":1,"searches_with_match":1,"bytes_searched":17,"bytes_printed":200,"matched_lines":1,"matches":1}}}
{"data":{"elapsed_total":{"human":"0.001s","nanos":1000000,"secs":0},"stats":{"bytes_printed":600,"bytes_searched":51,"elapsed":{"human":"0s","nanos":20,"secs":0},"matched_lines":3,"matches":3,"searches":2,"searches_with_match":2}},"type":"summary"}
`

type testServer struct {
	server *Server
	root   string
	engine *ripgreptest.Engine
	logger *logging.TestLogger
}

func setupTestServer(t *testing.T, behavior ripgreptest.Behavior) *testServer {
	t.Helper()

	root := t.TempDir()
	for _, d := range []string{"alpha", "beta", ".hidden"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0755))
	}

	engine := ripgreptest.New(t, behavior)
	tl := logging.NewTestLogger()
	inv := ripgrep.NewInvoker(ripgrep.Options{Binary: engine.Binary, ExcludeGlobs: []string{"!*.po", "!*.pot"}, Timeout: 10 * time.Second}, tl.Logger)
	svc := search.NewService(search.Options{CodeRoot: root, MaxMatches: 1000, MaxConcurrent: 1}, inv, tl.Logger, nil)

	server, err := NewServer(Deps{Searcher: svc, CodeRoot: root, Logger: tl.Logger}, nil)
	require.NoError(t, err)

	return &testServer{server: server, root: root, engine: engine, logger: tl}
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	ts.server.echo.ServeHTTP(rec, req)
	return rec
}

// initRepo creates a repository with one commit at dir and returns HEAD.
func initRepo(t *testing.T, dir string, remote string) string {
	t.Helper()
	r, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0644))

	wt, err := r.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "jxr", Email: "jxr@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)

	if remote != "" {
		_, err = r.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{remote}})
		require.NoError(t, err)
	}
	return hash.String()
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string, string) (*search.Result, error) {
	return nil, nil
}

func TestNewServer(t *testing.T) {
	logger := logging.NewTestLogger().Logger

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(Deps{Searcher: stubSearcher{}, CodeRoot: t.TempDir(), Logger: logger}, nil)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", server.config.Host)
		assert.Equal(t, 8000, server.config.Port)
		assert.NotNil(t, server.Handler())
	})

	t.Run("keeps given config", func(t *testing.T) {
		cfg := &Config{Host: "127.0.0.1", Port: 9000}
		server, err := NewServer(Deps{Searcher: stubSearcher{}, CodeRoot: t.TempDir(), Logger: logger}, cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(Deps{Searcher: stubSearcher{}, CodeRoot: t.TempDir()}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when searcher is nil", func(t *testing.T) {
		_, err := NewServer(Deps{CodeRoot: t.TempDir(), Logger: logger}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "searcher cannot be nil")
	})

	t.Run("returns error without code root", func(t *testing.T) {
		_, err := NewServer(Deps{Searcher: stubSearcher{}, Logger: logger}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "code root")
	})
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t, ripgreptest.Behavior{})

	rec := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleSearch(t *testing.T) {
	t.Run("path filter", func(t *testing.T) {
		ts := setupTestServer(t, ripgreptest.Behavior{Stdout: engineOutput})

		rec := ts.get(t, "/search?tree=alpha&query=path%3Afoo.rs+const")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

		var events []struct {
			Type string `json:"type"`
			Data struct {
				Path  struct{ Text string } `json:"path"`
				Stats map[string]any       `json:"stats"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
		require.Len(t, events, 4)
		assert.Equal(t, "begin", events[0].Type)
		assert.Equal(t, "match", events[1].Type)
		assert.Equal(t, "match", events[2].Type)
		assert.Equal(t, "summary", events[3].Type)
		for _, ev := range events[:3] {
			assert.Equal(t, "src/foo.rs", ev.Data.Path.Text)
		}
		assert.Equal(t, false, events[3].Data.Stats["truncated"])
		assert.Equal(t, []string{"--json", "--glob", "!*.po", "--glob", "!*.pot", "--", "const"}, ts.engine.Args(t))
	})

	t.Run("engine failure", func(t *testing.T) {
		ts := setupTestServer(t, ripgreptest.Behavior{Stderr: "regex parse error: unclosed group", ExitCode: 2})

		rec := ts.get(t, "/search?tree=alpha&query=(")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "ripgrep failed"), rec.Body.String())
		assert.Contains(t, rec.Body.String(), "unclosed group")
		ts.logger.AssertLogged(t, zapcore.ErrorLevel, "search failed")
	})

	t.Run("missing pattern", func(t *testing.T) {
		ts := setupTestServer(t, ripgreptest.Behavior{Stdout: engineOutput})

		rec := ts.get(t, "/search?tree=alpha&query=path%3Afoo")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "no search pattern")
		assert.Zero(t, ts.engine.Calls(t))
		ts.logger.AssertLogged(t, zapcore.WarnLevel, "search failed")
	})

	t.Run("traversal in tree name", func(t *testing.T) {
		ts := setupTestServer(t, ripgreptest.Behavior{Stdout: engineOutput})

		rec := ts.get(t, "/search?tree=..&query=const")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid tree name")
		assert.Zero(t, ts.engine.Calls(t))
	})

	t.Run("unknown tree", func(t *testing.T) {
		ts := setupTestServer(t, ripgreptest.Behavior{Stdout: engineOutput})

		rec := ts.get(t, "/search?tree=gamma&query=const")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "tree not found")
	})
}

func TestHandleTrees(t *testing.T) {
	ts := setupTestServer(t, ripgreptest.Behavior{})

	rec := ts.get(t, "/trees")
	require.Equal(t, http.StatusOK, rec.Code)

	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"alpha", "beta"}, names)
}

func TestHandleTrees_Empty(t *testing.T) {
	root := t.TempDir()
	server, err := NewServer(Deps{Searcher: stubSearcher{}, CodeRoot: root, Logger: logging.NewTestLogger().Logger}, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trees", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRepositoryMetadata(t *testing.T) {
	ts := setupTestServer(t, ripgreptest.Behavior{})
	head := initRepo(t, filepath.Join(ts.root, "alpha"), "git@github.com:fyrsmithlabs/jxr.git")
	require.NoError(t, os.MkdirAll(filepath.Join(ts.root, "alpha", "internal", "http"), 0755))
	initRepo(t, filepath.Join(ts.root, "beta"), "")

	tests := []struct {
		name   string
		target string
		status int
		want   string
	}{
		{name: "gitroot from tree", target: "/gitroot?path=alpha", status: http.StatusOK, want: `"alpha/"`},
		{name: "gitroot from nested dir", target: "/gitroot?path=alpha/internal/http", status: http.StatusOK, want: `"alpha/"`},
		{name: "head", target: "/head?path=alpha/main.go", status: http.StatusOK, want: `"` + head + `"`},
		{name: "github", target: "/github?path=alpha", status: http.StatusOK, want: `"fyrsmithlabs/jxr"`},
		{name: "gitroot outside any repo", target: "/gitroot?path=.hidden", status: http.StatusInternalServerError, want: "no git repository found"},
		{name: "gitroot traversal", target: "/gitroot?path=../etc", status: http.StatusInternalServerError, want: "invalid path"},
		{name: "github without origin", target: "/github?path=beta", status: http.StatusInternalServerError, want: "git failed: no origin remote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.get(t, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, tt.want, rec.Body.String())
				return
			}
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestRequestIDIsLogged(t *testing.T) {
	ts := setupTestServer(t, ripgreptest.Behavior{})

	rec := ts.get(t, "/health")
	id := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, id)

	ts.logger.AssertLogged(t, zapcore.InfoLevel, "http request")
	ts.logger.AssertField(t, "http request", "request.id", id)
	ts.logger.AssertField(t, "http request", "status", int64(http.StatusOK))
}

func TestRequestIDFromClientIsKept(t *testing.T) {
	ts := setupTestServer(t, ripgreptest.Behavior{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "client-abc_123")
	rec := httptest.NewRecorder()
	ts.server.echo.ServeHTTP(rec, req)

	assert.Equal(t, "client-abc_123", rec.Header().Get(echo.HeaderXRequestID))
	ts.logger.AssertField(t, "http request", "request.id", "client-abc_123")
}

func TestUnknownRouteIsLoggedWithStatus(t *testing.T) {
	ts := setupTestServer(t, ripgreptest.Behavior{})

	rec := ts.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	ts.logger.AssertField(t, "http request", "status", int64(http.StatusNotFound))
}
