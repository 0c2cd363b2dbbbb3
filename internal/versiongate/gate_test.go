package versiongate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1.2.3", "v1.2.3", true},
		{"v1.2", "1.2.0", true},
		{"1.2.3", "1.2.4", false},
		{"1.2.3+build5", "1.2.3", true},
		{"1.2.3-rc.1", "1.2.3", false},
		{"abc123", "abc123", true},
		{"abc123", "abc124", false},
		{" 1.0.0\n", "1.0.0", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Equal(c.a, c.b), "%q vs %q", c.a, c.b)
	}
}

func TestGateMatch(t *testing.T) {
	res, err := New("1.4.0", StaticSource("v1.4.0")).Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", res.Expected)
	assert.False(t, res.Skipped)
}

func TestGateMismatch(t *testing.T) {
	_, err := New("1.4.0", StaticSource("1.5.0")).Check(context.Background())
	var mm *VersionMismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, "1.4.0", mm.Current)
	assert.Equal(t, "1.5.0", mm.Expected)
	assert.Contains(t, mm.Error(), "static 1.5.0")
}

func TestGateDevBuildSkips(t *testing.T) {
	res, err := New(DevVersion, StaticSource("1.5.0")).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.NotEmpty(t, res.Warning)
}

func TestGateUnreachableSourceWarns(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "missing")}
	res, err := New("1.0.0", src).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Contains(t, res.Warning, "unavailable")
}

func TestGateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("1.0.0", StaticSource("1.0.0")).Check(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".lintmux-version")
	require.NoError(t, os.WriteFile(p, []byte("# pinned\n\n  2.0.1  \nignored\n"), 0o644))
	v, err := FileSource{Path: p}.Expected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.0.1", v)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n# nothing\n"), 0o644))
	_, err = FileSource{Path: empty}.Expected(context.Background())
	assert.ErrorIs(t, err, ErrNoVersion)
}

func TestHTTPSourcePlainAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			fmt.Fprint(w, "1.7.0\n")
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"version": "v1.8.0"}`)
		case "/empty":
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	v, err := HTTPSource{URL: srv.URL + "/plain"}.Expected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.7.0", v)

	v, err = HTTPSource{URL: srv.URL + "/json"}.Expected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.8.0", v)

	_, err = HTTPSource{URL: srv.URL + "/empty"}.Expected(context.Background())
	assert.ErrorIs(t, err, ErrNoVersion)

	_, err = HTTPSource{URL: srv.URL + "/missing"}.Expected(context.Background())
	assert.Error(t, err)
}

func TestHTTPSourceTimeoutIsAWarning(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	g := New("1.0.0", HTTPSource{URL: srv.URL, Timeout: 50 * time.Millisecond})
	res, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.NotEmpty(t, res.Warning)
}
