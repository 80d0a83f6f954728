// Package caixa drives the Caixa property-sale portal in a headless browser
// and collects the per-state listing export it offers for download.
package caixa

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"leiloes-caixa/config"
	"leiloes-caixa/models"
	"leiloes-caixa/utils"
)

const (
	regionSelect = "#cmb_estado"
	nextButton   = "#btn_next1"
)

// TimeoutError reports that the portal did not reach an expected state in time.
type TimeoutError struct {
	Region models.RegionCode
	Stage  string
	After  time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("caixa: %s: timed out waiting for %s after %v", e.Region, e.Stage, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Fetcher downloads one export per call to Acquire. Downloads land in a
// staging directory owned by the Fetcher; Close removes it.
type Fetcher struct {
	cfg    config.FetcherConfig
	logger *utils.Logger

	stagingDir string
	seen       *utils.FileSet
	poller     *utils.Poller

	// trigger performs the page interaction that starts a download. ctx
	// belongs to the browser session and stays live while Acquire polls.
	trigger func(ctx context.Context, region models.RegionCode) error
}

// New creates a Fetcher with a fresh staging directory below scratchDir.
func New(cfg *config.Config, logger *utils.Logger) (*Fetcher, error) {
	if err := os.MkdirAll(cfg.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("caixa: create scratch dir: %w", err)
	}
	dir, err := os.MkdirTemp(cfg.ScratchDir, "caixa-downloads-")
	if err != nil {
		return nil, fmt.Errorf("caixa: create staging dir: %w", err)
	}

	f := &Fetcher{
		cfg:        cfg.Fetcher,
		logger:     logger,
		stagingDir: dir,
		seen:       utils.NewFileSet(),
		poller: &utils.Poller{
			Interval: cfg.Fetcher.PollInterval,
			Timeout:  cfg.Fetcher.DownloadTimeout,
			Logger:   logger,
		},
	}
	f.trigger = f.requestExport
	return f, nil
}

// StagingDir is where downloaded exports are written.
func (f *Fetcher) StagingDir() string {
	return f.stagingDir
}

// Acquire requests the export for region and returns the local path of the
// file that appeared in the staging directory as a result. The browser stays
// open until the download has landed or the wait is given up.
func (f *Fetcher) Acquire(ctx context.Context, region models.RegionCode) (string, error) {
	f.logger.Info("[caixa] Requesting export for %s", region)

	// Anything already present belongs to an earlier region.
	if _, err := f.scan(); err != nil {
		return "", err
	}

	sess := f.newSession(ctx)
	defer sess.Close()

	if err := f.trigger(sess.ctx, region); err != nil {
		return "", err
	}

	var found string
	state, err := f.poller.Poll(sess.ctx, "download "+string(region), func() (bool, error) {
		names, err := f.scan()
		if err != nil {
			return false, err
		}
		if len(names) == 0 {
			return false, nil
		}
		found = names[0]
		return true, nil
	})
	if state == utils.PollTimedOut {
		return "", &TimeoutError{Region: region, Stage: "download", After: f.cfg.DownloadTimeout, Err: err}
	}
	if err != nil {
		return "", fmt.Errorf("caixa: %s: %w", region, err)
	}

	path := filepath.Join(f.stagingDir, found)
	f.logger.Info("[caixa] Export for %s downloaded: %s", region, path)
	return path, nil
}

// scan records every completed export in the staging directory and returns
// the names not seen before, sorted.
func (f *Fetcher) scan() ([]string, error) {
	entries, err := os.ReadDir(f.stagingDir)
	if err != nil {
		return nil, fmt.Errorf("caixa: read staging dir: %w", err)
	}

	var fresh []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), f.cfg.FileSuffix) {
			continue
		}
		if f.seen.Add(name) {
			fresh = append(fresh, name)
		}
	}
	sort.Strings(fresh)
	return fresh, nil
}

// requestExport selects region on the portal and submits the form. ctx is
// the browser session opened by Acquire.
func (f *Fetcher) requestExport(ctx context.Context, region models.RegionCode) error {
	if err := chromedp.Run(ctx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(f.stagingDir).
			WithEventsEnabled(true),
		chromedp.Navigate(f.cfg.URL),
	); err != nil {
		return fmt.Errorf("caixa: %s: open portal: %w", region, err)
	}

	if err := f.withElementTimeout(ctx, region, regionSelect,
		chromedp.WaitReady(regionSelect, chromedp.ByQuery),
		chromedp.SetValue(regionSelect, string(region), chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelector('`+regionSelect+`').dispatchEvent(new Event('change', {bubbles: true}))`, nil),
	); err != nil {
		return err
	}

	return f.withElementTimeout(ctx, region, nextButton,
		chromedp.WaitReady(nextButton, chromedp.ByQuery),
		chromedp.Click(nextButton, chromedp.ByQuery),
	)
}

func (f *Fetcher) withElementTimeout(ctx context.Context, region models.RegionCode, selector string, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ElementTimeout)
	defer cancel()

	err := chromedp.Run(ctx, actions...)
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Region: region, Stage: selector, After: f.cfg.ElementTimeout, Err: err}
	}
	if err != nil {
		return fmt.Errorf("caixa: %s: %s: %w", region, selector, err)
	}
	return nil
}

// Close removes the staging directory and everything downloaded into it.
func (f *Fetcher) Close() error {
	return os.RemoveAll(f.stagingDir)
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) Close() {
	s.cancel()
}

// newSession prepares a browser for one Acquire call. Chrome is only started
// by the first chromedp.Run on the returned context.
func (f *Fetcher) newSession(parent context.Context) *session {
	chromeBin := f.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	f.logger.Debug("[caixa] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	// Suppress chromedp log noise
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &session{ctx: ctx, cancel: func() {
		cancelCtx()
		cancelAlloc()
	}}
}

func findChromeBinary() string {
	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
