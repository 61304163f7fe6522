package invoicepdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	"image/png"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/goliatone/go-invoice/invoice"
)

const defaultPDFScale = 1.0

// A4 portrait paper size in inches.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)

var pdfLengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

// Executable names probed by FindChromium, in order.
var chromiumCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// FindChromium resolves a Chromium executable. A configured path must exist;
// without one the first candidate found on PATH is returned.
func FindChromium(configured string) (string, bool) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		return path, err == nil
	}
	for _, candidate := range chromiumCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, true
		}
	}
	return "", false
}

// ChromiumEngine renders PDF output using a shared headless Chromium instance.
// It also provides temporary capture surfaces for CaptureRasterizer.
type ChromiumEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	DefaultPDF invoice.PDFOptions

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

var (
	_ Engine          = (*ChromiumEngine)(nil)
	_ SurfaceProvider = (*ChromiumEngine)(nil)
)

// Render executes Chromium-based HTML-to-PDF rendering.
func (e *ChromiumEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, invoice.NewError(invoice.KindInternal, "chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := e.ensureBrowser(); err != nil {
		return nil, invoice.NewError(invoice.KindRender, "chromium engine init failed", err)
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	execCtx, cancelExec := e.execContext(ctx, tabCtx)
	defer cancelExec()

	options := mergePDFOptions(e.defaultPDFOptions(), req.Options.PDF)
	htmlInput := injectBaseURL(req.HTML, options.BaseURL)

	params, err := buildPrintToPDFParams(options)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	actions := blockAssetsActions(options)
	actions = append(actions,
		setDocumentContent(htmlInput),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(execCtx, actions...); err != nil {
		return nil, invoice.NewError(invoice.KindRender, "chromium pdf render failed", err)
	}
	return pdf, nil
}

// Acquire opens a temporary tab sized to the viewport. The caller must
// release the surface.
func (e *ChromiumEngine) Acquire(ctx context.Context, opts SurfaceOptions) (Surface, error) {
	if e == nil {
		return nil, invoice.NewError(invoice.KindInternal, "chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.ensureBrowser(); err != nil {
		return nil, invoice.NewError(invoice.KindRender, "chromium engine init failed", err)
	}

	policy := opts.Assets
	if policy == invoice.PDFExternalAssetsUnspecified {
		policy = e.DefaultPDF.ExternalAssetsPolicy
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	execCtx, cancelExec := e.execContext(ctx, tabCtx)
	surface := &chromiumSurface{
		ctx:      execCtx,
		viewport: opts.Viewport.withDefaults(),
		policy:   policy,
		release: func() {
			cancelExec()
			cancel()
		},
	}
	return surface, nil
}

// Close releases Chromium resources if they have been initialized.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
	})
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

// execContext ties a tab context to the caller context and engine timeout.
func (e *ChromiumEngine) execContext(ctx, tabCtx context.Context) (context.Context, context.CancelFunc) {
	execCtx, cancelReq := context.WithCancel(tabCtx)
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()
	if e.Timeout <= 0 {
		return execCtx, cancelReq
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(execCtx, e.Timeout)
	return timeoutCtx, func() {
		cancelTimeout()
		cancelReq()
	}
}

func (e *ChromiumEngine) defaultPDFOptions() invoice.PDFOptions {
	defaults := e.DefaultPDF
	if defaults.Scale == 0 {
		defaults.Scale = defaultPDFScale
	}
	if defaults.PrintBackground == nil {
		defaults.PrintBackground = boolPtr(true)
	}
	return defaults
}

type chromiumSurface struct {
	ctx      context.Context
	viewport Viewport
	policy   invoice.PDFExternalAssetsPolicy
	once     sync.Once
	release  func()
}

// Capture loads the HTML and returns a full-page screenshot.
func (s *chromiumSurface) Capture(ctx context.Context, htmlInput []byte) (image.Image, error) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if ctx != nil {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	var shot []byte
	actions := blockAssetsActions(invoice.PDFOptions{ExternalAssetsPolicy: s.policy})
	actions = append(actions,
		chromedp.EmulateViewport(int64(s.viewport.Width), int64(s.viewport.Height), chromedp.EmulateScale(s.viewport.Scale)),
		setDocumentContent(htmlInput),
		chromedp.FullScreenshot(&shot, 100),
	)
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx != nil && ctx.Err() != nil {
			return nil, invoice.NewError(invoice.KindCanceled, "chromium capture canceled", ctx.Err())
		}
		return nil, invoice.NewError(invoice.KindRender, "chromium capture failed", err)
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		return nil, invoice.NewError(invoice.KindRender, "decode capture", err)
	}
	return img, nil
}

// Release closes the tab. It is safe to call more than once.
func (s *chromiumSurface) Release() error {
	s.once.Do(s.release)
	return nil
}

func blockAssetsActions(opts invoice.PDFOptions) []chromedp.Action {
	if opts.ExternalAssetsPolicy != invoice.PDFExternalAssetsBlock {
		return []chromedp.Action{}
	}
	return []chromedp.Action{
		network.Enable(),
		network.SetBlockedURLs([]string{"http://*", "https://*"}),
	}
}

func setDocumentContent(htmlInput []byte) chromedp.Action {
	return chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(htmlInput)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
}

func mergePDFOptions(base, override invoice.PDFOptions) invoice.PDFOptions {
	merged := base
	if override.PrintBackground != nil {
		merged.PrintBackground = override.PrintBackground
	}
	if override.Scale != 0 {
		merged.Scale = override.Scale
	}
	if override.MarginTop != "" {
		merged.MarginTop = override.MarginTop
	}
	if override.MarginBottom != "" {
		merged.MarginBottom = override.MarginBottom
	}
	if override.MarginLeft != "" {
		merged.MarginLeft = override.MarginLeft
	}
	if override.MarginRight != "" {
		merged.MarginRight = override.MarginRight
	}
	if override.BaseURL != "" {
		merged.BaseURL = override.BaseURL
	}
	if override.ExternalAssetsPolicy != "" {
		merged.ExternalAssetsPolicy = override.ExternalAssetsPolicy
	}
	return merged
}

func buildPrintToPDFParams(opts invoice.PDFOptions) (*page.PrintToPDFParams, error) {
	params := page.PrintToPDF().
		WithPaperWidth(a4WidthInches).
		WithPaperHeight(a4HeightInches).
		WithLandscape(false)

	scale := opts.Scale
	if scale == 0 {
		scale = defaultPDFScale
	}
	if scale < 0.1 || scale > 2.0 {
		return nil, invoice.NewError(invoice.KindValidation, "pdf scale must be between 0.1 and 2.0", nil)
	}
	params = params.WithScale(scale)

	if opts.PrintBackground != nil {
		params = params.WithPrintBackground(*opts.PrintBackground)
	}

	if opts.MarginTop != "" {
		value, err := parseLengthInches(opts.MarginTop)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginTop(value)
	}
	if opts.MarginBottom != "" {
		value, err := parseLengthInches(opts.MarginBottom)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginBottom(value)
	}
	if opts.MarginLeft != "" {
		value, err := parseLengthInches(opts.MarginLeft)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginLeft(value)
	}
	if opts.MarginRight != "" {
		value, err := parseLengthInches(opts.MarginRight)
		if err != nil {
			return nil, err
		}
		params = params.WithMarginRight(value)
	}

	return params, nil
}

func parseLengthInches(value string) (float64, error) {
	matches := pdfLengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), nil)
	}

	raw := matches[1]
	unit := strings.ToLower(matches[2])
	if unit == "" {
		unit = "in"
	}

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), err)
	}

	switch unit {
	case "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / 25.4, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / 96.0, nil
	default:
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("unsupported pdf length unit: %s", unit), nil)
	}
}

func injectBaseURL(htmlInput []byte, baseURL string) []byte {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return htmlInput
	}

	lower := strings.ToLower(string(htmlInput))
	if strings.Contains(lower, "<base") {
		return htmlInput
	}

	baseTag := fmt.Sprintf(`<base href="%s">`, html.EscapeString(baseURL))
	if headIdx := strings.Index(lower, "<head"); headIdx >= 0 {
		if end := strings.Index(lower[headIdx:], ">"); end >= 0 {
			insertPos := headIdx + end + 1
			return append(append([]byte{}, htmlInput[:insertPos]...), append([]byte(baseTag), htmlInput[insertPos:]...)...)
		}
	}

	return append([]byte(baseTag), htmlInput...)
}

func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	options := make([]chromedp.ExecAllocatorOption, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if arg == "" {
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok {
			options = append(options, chromedp.Flag(name, value))
			continue
		}
		options = append(options, chromedp.Flag(arg, true))
	}
	return options
}

func boolPtr(value bool) *bool {
	return &value
}
