package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"papervid/internal/layout"
	"papervid/internal/storage"
)

// settleDelay gives the presentation runtime time to finish a slide change
// before the screenshot is taken.
const settleDelay = 100 * time.Millisecond

const revealReadyJS = `window.Reveal && Reveal.isReady && Reveal.isReady()`

// captureDeck drives one headless-browser session over the assembled deck:
// a fixed-resolution screenshot per slide in slide order, then a second
// print-oriented navigation that exports the whole deck as one PDF. The
// session is sequential on purpose; one browser and one page enforce capture
// ordering, and the deferred cancels release it on every exit path.
func (e *Engine) captureDeck(ctx context.Context, deckPath, outputDir string) (string, []string, error) {
	imagesDir := filepath.Join(outputDir, "slides-images")
	if err := os.RemoveAll(imagesDir); err != nil {
		return "", nil, fmt.Errorf("clear slide images dir: %w", err)
	}
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return "", nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	deckURL := fileURL(deckPath)
	var ready bool
	var slideCount int
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(layout.SlideWidth, layout.SlideHeight),
		chromedp.Navigate(deckURL),
		chromedp.Poll(revealReadyJS, &ready),
		chromedp.Evaluate(`document.documentElement.classList.add('export-images'); true`, nil),
		chromedp.Evaluate(`Reveal.configure({transition: 'none', backgroundTransition: 'none'}); true`, nil),
		chromedp.Evaluate(`Reveal.getSlides().length`, &slideCount),
	)
	if err != nil {
		return "", nil, fmt.Errorf("open slide deck in browser: %w", err)
	}
	if slideCount == 0 {
		return "", nil, errors.New("slide deck reported no slides to capture")
	}

	images := make([]string, 0, slideCount)
	for index := 0; index < slideCount; index++ {
		var shot []byte
		err := chromedp.Run(browserCtx,
			chromedp.Evaluate(fmt.Sprintf(`Reveal.slide(%d, 0, 0); true`, index), nil),
			chromedp.Sleep(settleDelay),
			chromedp.CaptureScreenshot(&shot),
		)
		if err != nil {
			return "", nil, fmt.Errorf("capture slide %d: %w", index+1, err)
		}
		imagePath := filepath.Join(imagesDir, fmt.Sprintf("slide-%03d.png", index+1))
		if err := storage.WriteFileAtomic(imagePath, shot); err != nil {
			return "", nil, err
		}
		images = append(images, e.store.Rel(imagePath))
	}

	pdfPath := filepath.Join(outputDir, "slides.pdf")
	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(deckURL+"?print-pdf"),
		chromedp.Poll(revealReadyJS, &ready),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetEmulatedMedia().WithMedia("screen").Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Chrome paper sizes are inches at 96 DPI.
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(float64(layout.SlideWidth) / 96).
				WithPaperHeight(float64(layout.SlideHeight) / 96).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return "", nil, fmt.Errorf("export deck PDF: %w", err)
	}
	if err := storage.WriteFileAtomic(pdfPath, pdf); err != nil {
		return "", nil, err
	}

	return e.store.Rel(pdfPath), images, nil
}
