package common

import (
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"gopkg.in/yaml.v3"

	"github.com/mikecbrant/secure-static-site/internal/awssdk"
	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

//go:embed assets/smoke/*.yaml
var smokeFS embed.FS

// Smoke check routes.
const (
	ViaCDN    = "cdn"
	ViaBucket = "bucket"
)

// SmokeCase is one HTTP expectation against the deployed site.
type SmokeCase struct {
	Name     string `yaml:"name"`
	Via      string `yaml:"via"`
	Path     string `yaml:"path"`
	Expect   int    `yaml:"expect"`
	Contains string `yaml:"contains,omitempty"`
}

type smokeDoc struct {
	Cases []SmokeCase `yaml:"cases"`
}

// SmokeTarget addresses the deployed site.
type SmokeTarget struct {
	// Host serving the CDN; the distribution domain name until DNS points the site domain at it.
	Host   string
	Bucket string
	Region string
}

// SmokeResult is the observed outcome of a case.
type SmokeResult struct {
	Case   SmokeCase
	URL    string
	Status int
}

// NewSmokeClient returns the HTTP client used for smoke checks: bounded timeout, a few retries
// with constant backoff on transport errors and 5xx responses.
func NewSmokeClient(doer heimdall.Doer) *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithHTTPTimeout(10 * time.Second),
		httpclient.WithRetryCount(2),
		httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(500*time.Millisecond, 100*time.Millisecond))),
	}
	if doer != nil {
		opts = append(opts, httpclient.WithHTTPClient(doer))
	}
	return httpclient.NewClient(opts...)
}

// LoadSmokeCases merges the embedded base checks with an optional consumer file. A missing
// consumer file is not an error.
func LoadSmokeCases(consumerPath string) ([]SmokeCase, error) {
	b, err := smokeFS.ReadFile("assets/smoke/base.yaml")
	if err != nil {
		return nil, err
	}
	base, err := readSmokeDoc(b, "base.yaml")
	if err != nil {
		return nil, err
	}
	cases := append([]SmokeCase{}, base.Cases...)
	if strings.TrimSpace(consumerPath) == "" {
		return cases, nil
	}
	raw, err := os.ReadFile(consumerPath)
	if os.IsNotExist(err) {
		return cases, nil
	}
	if err != nil {
		return nil, err
	}
	doc, err := readSmokeDoc(raw, consumerPath)
	if err != nil {
		return nil, err
	}
	return append(cases, doc.Cases...), nil
}

func readSmokeDoc(b []byte, src string) (smokeDoc, error) {
	var doc smokeDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return smokeDoc{}, fmt.Errorf("invalid smoke check YAML %s: %w", src, err)
	}
	for i, c := range doc.Cases {
		if c.Via != ViaCDN && c.Via != ViaBucket {
			return smokeDoc{}, fmt.Errorf("smoke check #%d in %s: via must be %q or %q", i+1, src, ViaCDN, ViaBucket)
		}
		if c.Expect == 0 {
			return smokeDoc{}, fmt.Errorf("smoke check #%d in %s: expect is required", i+1, src)
		}
	}
	return doc, nil
}

func (t SmokeTarget) url(c SmokeCase) string {
	if c.Via == ViaBucket {
		return awssdk.BucketObjectURL(t.Bucket, t.Region, c.Path)
	}
	return "https://" + t.Host + "/" + strings.TrimPrefix(c.Path, "/")
}

// RunSmokeChecks executes the cases in order and fails on the first unexpected status.
func RunSmokeChecks(ctx context.Context, client heimdall.Doer, target SmokeTarget, cases []SmokeCase, logger logging.Logger) ([]SmokeResult, error) {
	logger = logging.OrNop(logger)
	if client == nil {
		client = NewSmokeClient(nil)
	}
	results := make([]SmokeResult, 0, len(cases))
	for i, c := range cases {
		u := target.url(c)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return results, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return results, fmt.Errorf("smoke check #%d (%s) failed to execute: %w", i+1, c.Name, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			return results, fmt.Errorf("smoke check #%d (%s) read body: %w", i+1, c.Name, err)
		}
		results = append(results, SmokeResult{Case: c, URL: u, Status: resp.StatusCode})
		if resp.StatusCode != c.Expect {
			return results, fmt.Errorf("smoke check #%d (%s) unexpected status: got %d, want %d (url=%s)", i+1, c.Name, resp.StatusCode, c.Expect, u)
		}
		if c.Contains != "" && !strings.Contains(string(body), c.Contains) {
			return results, fmt.Errorf("smoke check #%d (%s) body does not contain %q (url=%s)", i+1, c.Name, c.Contains, u)
		}
		logger.Debug("smoke.ok", logging.Fields{"name": c.Name, "url": u, "status": resp.StatusCode})
	}
	logger.Info("smoke.done", logging.Fields{"cases": len(results)})
	return results, nil
}
