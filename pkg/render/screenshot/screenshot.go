// Package screenshot captures a rendered widget page as a PNG with headless
// Chrome.
//
// The page is loaded from a temporary file, given time to lay out and then
// captured at the requested viewport size. JavaScript exceptions thrown by
// the page fail the capture, so a broken engine bundle is reported instead
// of producing an empty image.
package screenshot

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/matzehuels/nvlviz/pkg/errors"
)

// Defaults for Options.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 800
	DefaultSettle  = 2 * time.Second
	DefaultTimeout = 30 * time.Second
)

// Options configures Capture.
type Options struct {
	Width, Height int
	// Settle is how long the layout may run before the capture.
	Settle time.Duration
	// Timeout bounds the whole capture, browser start included.
	Timeout time.Duration
	// ExecPath selects the Chrome binary; empty means the first one found.
	ExecPath string
}

func (o *Options) setDefaults() {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Settle == 0 {
		o.Settle = DefaultSettle
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
}

func (o *Options) validate() error {
	if o.Width < 0 || o.Height < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "viewport must be positive, got %dx%d", o.Width, o.Height)
	}
	if o.Settle < 0 || o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "durations must not be negative")
	}
	return nil
}

// Capture loads page in headless Chrome and returns a PNG of the viewport.
func Capture(ctx context.Context, page []byte, opts Options) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()

	dir, err := os.MkdirTemp("", "nvlviz-screenshot-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, page, 0600); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var (
		mu       sync.Mutex
		pageErrs []string
	)
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if ev, ok := ev.(*runtime.EventExceptionThrown); ok {
			mu.Lock()
			pageErrs = append(pageErrs, exceptionText(ev.ExceptionDetails))
			mu.Unlock()
		}
	})

	var png []byte
	err = chromedp.Run(browserCtx,
		runtime.Enable(),
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate("file://"+path),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(opts.Settle),
		chromedp.CaptureScreenshot(&png),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "capture screenshot")
		}
		return nil, errors.Wrap(errors.ErrCodeEngine, err, "capture screenshot")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(pageErrs) > 0 {
		return nil, errors.New(errors.ErrCodeEngine, "page script failed: %s", pageErrs[0])
	}
	return png, nil
}

func exceptionText(d *runtime.ExceptionDetails) string {
	if d == nil {
		return "unknown exception"
	}
	if d.Exception != nil && d.Exception.Description != "" {
		return d.Exception.Description
	}
	return d.Text
}
