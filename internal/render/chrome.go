package render

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	// Bin is the Chrome/Chromium executable. Empty lets rod find or
	// download one.
	Bin string
	// NoSandbox is required when running as root inside containers.
	NoSandbox bool
	// IdleWindow is how long the network must stay quiet before printing.
	IdleWindow time.Duration
}

// ChromeRenderer prints markup with a fresh headless Chrome per call. Nothing
// is shared between renders.
type ChromeRenderer struct {
	opts   ChromeOptions
	logger zerolog.Logger
}

func NewChromeRenderer(opts ChromeOptions, logger zerolog.Logger) *ChromeRenderer {
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = 500 * time.Millisecond
	}
	return &ChromeRenderer{opts: opts, logger: logger.With().Str("component", "renderer").Logger()}
}

// Render launches Chrome, loads the markup, waits for load and network idle,
// and prints every page at the requested size. The browser is torn down on
// every return path. No timeout is applied beyond ctx.
func (r *ChromeRenderer) Render(ctx context.Context, req Request) (pdf []byte, err error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	started := time.Now()

	l := launcher.New().Context(ctx).Headless(true).NoSandbox(r.opts.NoSandbox)
	if r.opts.Bin != "" {
		l = l.Bin(r.opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("render: launch browser: %w", err)
	}
	// Cleanup blocks until the process exits, so it is only deferred once
	// the browser is running.
	defer l.Cleanup()
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect browser: %w", err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			r.logger.Debug().Err(cerr).Msg("close browser")
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("render: open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.logger.Debug().Err(cerr).Msg("close page")
		}
	}()

	waitIdle := page.WaitRequestIdle(r.opts.IdleWindow, nil, nil, nil)
	if err := page.SetDocumentContent(req.Markup); err != nil {
		return nil, fmt.Errorf("render: load markup: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("render: wait load: %w", err)
	}
	waitIdle()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := (proto.EmulationSetEmulatedMedia{Media: "print"}).Call(page); err != nil {
		return nil, fmt.Errorf("render: emulate print media: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:        gson.Num(CmToInches(req.WidthCm)),
		PaperHeight:       gson.Num(CmToInches(req.HeightCm)),
		MarginTop:         gson.Num(0),
		MarginBottom:      gson.Num(0),
		MarginLeft:        gson.Num(0),
		MarginRight:       gson.Num(0),
		PrintBackground:   true,
		PreferCSSPageSize: true,
		PageRanges:        fmt.Sprintf("1-%d", req.PageCount),
	})
	if err != nil {
		return nil, fmt.Errorf("render: print pdf: %w", err)
	}
	pdf, err = io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("render: read pdf stream: %w", err)
	}
	if err := VerifyPageCount(pdf, req.PageCount); err != nil {
		return nil, err
	}

	r.logger.Debug().
		Int("pages", req.PageCount).
		Int("bytes", len(pdf)).
		Dur("took", time.Since(started)).
		Msg("album rendered")
	return pdf, nil
}

var _ Renderer = (*ChromeRenderer)(nil)
