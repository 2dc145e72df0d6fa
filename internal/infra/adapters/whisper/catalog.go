package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const modelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// modelAliases maps the model names jobs use to whisper.cpp ggml file names.
var modelAliases = map[string]string{
	"large": "large-v3",
	"turbo": "large-v3-turbo",
}

var knownModels = map[string]bool{
	"tiny": true, "tiny.en": true,
	"base": true, "base.en": true,
	"small": true, "small.en": true,
	"medium": true, "medium.en": true,
	"large-v1": true, "large-v2": true, "large-v3": true, "large-v3-turbo": true,
}

// Catalog resolves model names to ggml files in a local directory and
// fetches missing ones when allowed.
type Catalog struct {
	dir      string
	download bool
	baseURL  string
	client   *http.Client
}

func NewCatalog(dir string, download bool) *Catalog {
	return &Catalog{
		dir:      dir,
		download: download,
		baseURL:  modelBaseURL,
		client:   &http.Client{Timeout: 30 * time.Minute},
	}
}

func canonicalName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if alias, ok := modelAliases[name]; ok {
		return alias
	}
	return name
}

// Path is the local file for name, whether or not it exists yet.
func (c *Catalog) Path(name string) (string, error) {
	n := canonicalName(name)
	if n == "" || strings.ContainsAny(n, `/\`) || strings.Contains(n, "..") {
		return "", fmt.Errorf("invalid model name %q", name)
	}
	return filepath.Join(c.dir, "ggml-"+n+".bin"), nil
}

// URL is where a known model is downloaded from.
func (c *Catalog) URL(name string) (string, bool) {
	n := canonicalName(name)
	if !knownModels[n] {
		return "", false
	}
	return c.baseURL + "ggml-" + n + ".bin", true
}

// Ensure returns the path of a usable model file, downloading it first
// when it is missing and downloads are enabled.
func (c *Catalog) Ensure(ctx context.Context, name string) (string, error) {
	path, err := c.Path(name)
	if err != nil {
		return "", err
	}
	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		return path, nil
	}
	url, known := c.URL(name)
	if !known {
		return "", fmt.Errorf("unknown model %q and no file at %s", name, path)
	}
	if !c.download {
		return "", fmt.Errorf("model %q not found at %s and downloads are disabled", name, path)
	}
	if err := c.fetch(ctx, path, url); err != nil {
		return "", fmt.Errorf("download model %q: %w", name, err)
	}
	return path, nil
}

func (c *Catalog) fetch(ctx context.Context, dst, url string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("prepare model directory: %w", err)
	}
	tmp := dst + ".download"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "speech-to-text")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	_, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write model file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close model file: %w", closeErr)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move model into place: %w", err)
	}
	return nil
}
