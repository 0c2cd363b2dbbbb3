package versiongate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Source yields the version the repository expects lintmux to be.
type Source interface {
	Expected(ctx context.Context) (string, error)
	String() string
}

// ErrNoVersion is returned when a source is reachable but holds no version.
var ErrNoVersion = errors.New("no version found")

// FileSource reads the first non-blank line of a file in the repository.
type FileSource struct {
	Path string
}

func (s FileSource) Expected(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if v := strings.TrimSpace(sc.Text()); v != "" && !strings.HasPrefix(v, "#") {
			return v, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s: %w", s.Path, ErrNoVersion)
}

func (s FileSource) String() string { return "file " + s.Path }

const (
	DefaultHTTPTimeout = 5 * time.Second
	maxBody            = 4 << 10
)

// HTTPSource fetches the expected version over HTTP. The body is either plain
// text or a JSON object with a "version" field.
type HTTPSource struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

func (s HTTPSource) Expected(ctx context.Context) (string, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json, text/plain")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %s", s.URL, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}
	return parseBody(body)
}

func (s HTTPSource) String() string { return "url " + s.URL }

func parseBody(body []byte) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var doc struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(body, &doc); err != nil {
			return "", fmt.Errorf("decode version document: %w", err)
		}
		if v := strings.TrimSpace(doc.Version); v != "" {
			return v, nil
		}
		return "", ErrNoVersion
	}
	line, _, _ := strings.Cut(string(body), "\n")
	if v := strings.TrimSpace(line); v != "" {
		return v, nil
	}
	return "", ErrNoVersion
}

// StaticSource is a fixed expected version, set from LINTMUX_EXPECTED_VERSION.
type StaticSource string

func (s StaticSource) Expected(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoVersion
	}
	return strings.TrimSpace(string(s)), nil
}

func (s StaticSource) String() string { return "static " + string(s) }
