// Package download saves generated images. When an image cannot be
// fetched, the original URL is handed to an Opener (a new browser tab)
// instead of failing.
package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"brandviz.io/studio/internal/domain"
	"brandviz.io/studio/internal/logging"
)

const (
	DefaultBatchDelay = 500 * time.Millisecond
	maxImageBytes     = 64 << 20
)

var (
	ErrFetch = errors.New("failed to fetch image")
	// ErrNotBrowsable marks image URLs that are never handed to a browser.
	ErrNotBrowsable = errors.New("image URL is not an http(s) URL")
)

// browsable reports whether raw is an absolute http or https URL.
func browsable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Opener shows a URL to the user, typically in a new browser tab.
type Opener interface {
	Open(url string) error
}

type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

type Config struct {
	Dir          string
	BypassHeader string
	HTTPClient   *http.Client
	Opener       Opener
}

type Downloader struct {
	dir          string
	bypassHeader string
	httpClient   *http.Client
	opener       Opener
	logger       *zap.Logger
}

// Result describes one download. FellBack is set when the image could not
// be fetched and its URL was opened instead; Err then holds the fetch error.
type Result struct {
	Filename string
	Path     string
	Bytes    int64
	FellBack bool
	Err      error
}

func New(cfg Config, logger *zap.Logger) *Downloader {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opener := cfg.Opener
	if opener == nil {
		opener = BrowserOpener{}
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	return &Downloader{
		dir:          dir,
		bypassHeader: cfg.BypassHeader,
		httpClient:   httpClient,
		opener:       opener,
		logger:       logging.OrNop(logger).Named("download"),
	}
}

// Fetch returns the image bytes and content type. Inline images are decoded locally.
func (d *Downloader) Fetch(ctx context.Context, img domain.GeneratedImage) ([]byte, string, error) {
	if img.Inline() {
		data, err := base64.StdEncoding.DecodeString(img.Base64)
		if err != nil {
			return nil, "", fmt.Errorf("decoding inline image: %w", err)
		}
		return data, "image/png", nil
	}
	if img.URL == "" {
		return nil, "", fmt.Errorf("%w: image has no source", ErrFetch)
	}
	if strings.HasPrefix(img.URL, "data:") {
		return decodeDataURI(img.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if d.bypassHeader != "" {
		req.Header.Set(d.bypassHeader, "true")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: HTTP %d", ErrFetch, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("%w: image larger than %d bytes", ErrFetch, maxImageBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func decodeDataURI(uri string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", fmt.Errorf("%w: unsupported data URI", ErrFetch)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding data URI: %w", err)
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

// Download saves img under filename in the download directory. If the
// image cannot be fetched its URL is opened instead and the returned error
// is nil; an error is only returned when neither worked.
func (d *Downloader) Download(ctx context.Context, img domain.GeneratedImage, filename string) (Result, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		name = img.Filename("", -1)
	}
	res := Result{Filename: name}
	log := d.logger.With(zap.String("filename", name))

	data, _, err := d.Fetch(ctx, img)
	if err != nil {
		log.Warn("Error downloading image", zap.Error(err))
		if img.Inline() || img.URL == "" {
			return res, err
		}
		if !browsable(img.URL) {
			return res, fmt.Errorf("%w: %w", err, ErrNotBrowsable)
		}
		log.Info("Fallback: opening image URL", zap.String("url", img.URL))
		if oerr := d.opener.Open(img.URL); oerr != nil {
			return res, fmt.Errorf("%w; opening %s also failed: %w", err, img.URL, oerr)
		}
		res.FellBack = true
		res.Err = err
		return res, nil
	}

	path, err := d.save(name, data)
	if err != nil {
		return res, err
	}
	res.Path = path
	res.Bytes = int64(len(data))
	log.Info("Download complete", zap.String("path", path), zap.Int64("bytes", res.Bytes))
	return res, nil
}

// save writes through a temp file in the target directory so a partial
// write never leaves a truncated image under the final name.
func (d *Downloader) save(name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}

	path := filepath.Join(d.dir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("moving %s into place: %w", name, err)
	}
	return path, nil
}

// Item pairs an image with the name it should be saved under.
type Item struct {
	Image    domain.GeneratedImage
	Filename string
}

// BatchDownload downloads items one after another, at most one per delay.
// It stops early only when ctx is cancelled.
func (d *Downloader) BatchDownload(ctx context.Context, items []Item, delay time.Duration) ([]Result, error) {
	if delay <= 0 {
		delay = DefaultBatchDelay
	}
	limiter := rate.NewLimiter(rate.Every(delay), 1)
	d.logger.Info("Batch downloading images", zap.Int("count", len(items)))

	results := make([]Result, 0, len(items))
	for _, item := range items {
		if err := limiter.Wait(ctx); err != nil {
			return results, err
		}
		res, err := d.Download(ctx, item.Image, item.Filename)
		if err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	d.logger.Info("Batch download complete", zap.Int("count", len(results)))
	return results, nil
}

// Stream writes img as an attachment so the browser shows a save dialog.
// If the image cannot be fetched the browser is redirected to its URL.
func (d *Downloader) Stream(w http.ResponseWriter, r *http.Request, img domain.GeneratedImage, filename string) {
	data, contentType, err := d.Fetch(r.Context(), img)
	if err != nil {
		d.logger.Warn("Error streaming image", zap.Error(err))
		if img.Inline() || !browsable(img.URL) {
			http.Error(w, "Could not download image", http.StatusBadGateway)
			return
		}
		http.Redirect(w, r, img.URL, http.StatusFound)
		return
	}

	name := filepath.Base(filepath.Clean("/" + filename))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Write(data)
}
