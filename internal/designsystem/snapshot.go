package designsystem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"adforge/internal/infra"
)

// Snapshotter renders a landing page into a PNG.
type Snapshotter interface {
	Snapshot(ctx context.Context, pageURL string) ([]byte, error)
}

// RodOptions configures the headless browser.
type RodOptions struct {
	// Bin is the browser executable. Empty lets the launcher find or
	// download one.
	Bin               string
	ViewportWidth     int
	ViewportHeight    int
	NavigationTimeout time.Duration
	Logger            *infra.Logger
}

// RodSnapshotter drives a lazily launched headless Chrome.
type RodSnapshotter struct {
	opts   RodOptions
	logger *infra.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

func NewRodSnapshotter(opts RodOptions) *RodSnapshotter {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1280
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 800
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 20 * time.Second
	}
	return &RodSnapshotter{opts: opts, logger: infra.LoggerOrDiscard(opts.Logger)}
}

func (s *RodSnapshotter) connect(ctx context.Context) (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	launch := launcher.New().Headless(true)
	if bin := strings.TrimSpace(s.opts.Bin); bin != "" {
		launch = launch.Bin(bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("designsystem: launch browser: %w", err)
	}
	// The browser outlives any single request context.
	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("designsystem: connect to browser: %w", err)
	}
	s.logger.Info().Str("control_url", controlURL).Msg("designsystem: browser started")
	s.browser = browser
	return browser, nil
}

// Snapshot loads pageURL in an isolated context and captures the viewport.
func (s *RodSnapshotter) Snapshot(ctx context.Context, pageURL string) ([]byte, error) {
	browser, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("designsystem: incognito context: %w", err)
	}
	defer incognito.Close()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("designsystem: create page: %w", err)
	}
	defer page.Close()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.ViewportWidth,
		Height:            s.opts.ViewportHeight,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		s.logger.Warn().Err(err).Msg("designsystem: set viewport failed")
	}

	nav := page.Context(ctx).Timeout(s.opts.NavigationTimeout)
	if err := nav.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("designsystem: navigate %s: %w", pageURL, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, fmt.Errorf("designsystem: wait for load: %w", err)
	}
	shot, err := page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("designsystem: screenshot: %w", err)
	}
	if len(shot) == 0 {
		return nil, errors.New("designsystem: empty screenshot")
	}
	return shot, nil
}

// Close shuts the browser down if it was started.
func (s *RodSnapshotter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}
