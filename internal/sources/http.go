package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"tablereader/internal/errors"
	"tablereader/internal/logger"
	"tablereader/internal/read"
	"tablereader/internal/table"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches a JSON document from a REST endpoint and reads the array of
// objects in it, the same way the JSON file source does.

const (
	OptMethod  = "method"
	OptHeaders = "headers"
	OptBody    = "body"
	OptTimeout = "timeout"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTP reads JSON arrays served over HTTP. Each item is a URL.
type HTTP struct {
	h      table.TypeHierarchy
	client *http.Client
	log    *zap.SugaredLogger
}

func NewHTTP(h table.TypeHierarchy) *HTTP {
	return &HTTP{h: h, client: &http.Client{}, log: logger.ComponentLogger("sources.http")}
}

func (s *HTTP) Spec() Spec {
	return Spec{
		Type:  "http",
		Label: "HTTP API",
		Item:  "URL returning JSON",
		Options: []Option{
			{Key: OptMethod, Label: "Method", Default: "GET"},
			{Key: OptHeaders, Label: "Headers", Help: `JSON object of headers (e.g., {"Authorization": "Bearer xxx"})`},
			{Key: OptBody, Label: "Body", Help: "Request body (for POST)"},
			{Key: OptDataPath, Label: "Data Path", Help: "Dot-separated path to the array in the response (e.g., 'data.items')"},
			{Key: OptTimeout, Label: "Timeout", Default: "30s"},
		},
	}
}

func (s *HTTP) ReadSpec(ctx context.Context, source string, cfg read.Config) (table.TableSpec, error) {
	r, err := s.open(ctx, source, cfg)
	if err != nil {
		return table.TableSpec{}, err
	}
	defer r.Close()

	spec, err := sampleJSONSpec(ctx, s.h, r, cfg)
	if err != nil {
		return table.TableSpec{}, err
	}
	s.log.Debugw("spec read", logger.FieldSource, source, "spec", spec.String())
	return spec, nil
}

func (s *HTTP) Read(ctx context.Context, source string, cfg read.Config) (read.Read, error) {
	return s.open(ctx, source, cfg)
}

func (s *HTTP) open(ctx context.Context, url string, cfg read.Config) (*jsonRead, error) {
	data, err := s.fetch(ctx, url, cfg)
	if err != nil {
		return nil, err
	}
	return newJSONRead(data, url, cfg)
}

func (s *HTTP) fetch(ctx context.Context, url string, cfg read.Config) ([]byte, error) {
	timeout := defaultHTTPTimeout
	if v := cfg.Option(OptTimeout, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.Configurationf("option %s must be a positive duration, got %q", OptTimeout, v)
		}
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(cfg.Option(OptMethod, http.MethodGet))
	var body io.Reader
	if b := cfg.Option(OptBody, ""); b != "" {
		body = strings.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.AsConfiguration(errors.Wrapf(err, "create request for %s", url))
	}
	if h := cfg.Option(OptHeaders, ""); h != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(h), &headers); err != nil {
			return nil, errors.Configurationf("option %s must be a JSON object of strings: %v", OptHeaders, err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Newf("%s %s: http %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	s.log.Debugw("fetched", logger.FieldSource, url, "status", resp.StatusCode,
		"bytes", len(data), logger.FieldDurationMS, time.Since(start).Milliseconds())
	return data, nil
}
