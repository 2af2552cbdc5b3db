package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless Chrome renderer.
type ChromeOptions struct {
	// ExecPath overrides Chrome discovery.
	ExecPath  string
	NoSandbox bool
	// Timeout bounds one render, browser start included.
	Timeout time.Duration
}

// ChromeRenderer prints documents with headless Chrome through chromedp.
// Each render starts its own browser so concurrent exports never share a
// tab.
type ChromeRenderer struct {
	opts   ChromeOptions
	logger *slog.Logger
}

// NewChromeRenderer creates a chromedp backed renderer.
func NewChromeRenderer(opts ChromeOptions, logger *slog.Logger) *ChromeRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeRenderer{
		opts:   opts,
		logger: logger.With(slog.String("component", "pdf_renderer")),
	}
}

// RenderPDF implements PDFRenderer.
func (c *ChromeRenderer) RenderPDF(ctx context.Context, doc Document) ([]byte, error) {
	start := time.Now()

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts, chromedp.Flag("headless", true), chromedp.DisableGPU)
	if c.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	var pdf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to get frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, string(doc.HTML)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithLandscape(doc.Page.Landscape).
				WithPrintBackground(true).
				WithPaperWidth(doc.Page.PaperWidth).
				WithPaperHeight(doc.Page.PaperHeight).
				WithMarginTop(doc.Page.Margin).
				WithMarginLeft(doc.Page.Margin).
				WithMarginRight(doc.Page.Margin).
				WithMarginBottom(doc.Page.Margin + 0.2)
			if doc.Footer != "" {
				params = params.
					WithDisplayHeaderFooter(true).
					WithHeaderTemplate("<span></span>").
					WithFooterTemplate(doc.Footer)
			}
			buf, _, err := params.Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to print: %w", err)
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		c.logger.ErrorContext(ctx, "chrome render failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}

	c.logger.DebugContext(ctx, "chrome render complete",
		slog.Int("html_bytes", len(doc.HTML)),
		slog.Int("pdf_bytes", len(pdf)),
		slog.Duration("duration", time.Since(start)))

	return pdf, nil
}
