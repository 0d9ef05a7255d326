// Package browser drives a headless Chrome through chromedp with human-paced
// interactions and basic automation fingerprint masking.
package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spigell/job-autopilot/internal/logger"
)

const (
	DefaultActionTimeout     = 30 * time.Second
	DefaultNavigationTimeout = 45 * time.Second
)

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("element not found")

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36 Edg/127.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// stealthScript runs before any page script on every navigation.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', {
  get: () => [
    { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
    { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
    { name: 'Native Client', filename: 'internal-nacl-plugin' },
  ],
});
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

type Options struct {
	// Headed shows the browser window. Sessions are headless by default.
	Headed            bool          `mapstructure:"headed"`
	ExecPath          string        `mapstructure:"exec-path"`
	UserAgent         string        `mapstructure:"user-agent"`
	ActionTimeout     time.Duration `mapstructure:"action-timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation-timeout"`
	NoSandbox         bool          `mapstructure:"no-sandbox"`
}

func (o Options) actionTimeout() time.Duration {
	if o.ActionTimeout <= 0 {
		return DefaultActionTimeout
	}
	return o.ActionTimeout
}

func (o Options) navigationTimeout() time.Duration {
	if o.NavigationTimeout <= 0 {
		return DefaultNavigationTimeout
	}
	return o.NavigationTimeout
}

// Session is one browser with a single tab. Close must be called on every
// exit path.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
	logger      *zap.Logger
}

// Launch starts a browser and prepares its first tab.
func Launch(ctx context.Context, opts Options, log *zap.Logger) (*Session, error) {
	log = logger.OrNop(log)
	ua := opts.UserAgent
	if ua == "" {
		ua = pickUserAgent(rand.IntN)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(opts, ua)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Debugf),
	)

	s := &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		opts:        opts,
		logger:      log,
	}

	// The first Run allocates the browser and must not use a derived
	// timeout context, or the browser dies with it.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	err := s.run(ctx, s.opts.navigationTimeout(), chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("install page script: %w", err)
	}

	log.Debug("browser started", zap.String("user_agent", ua))
	return s, nil
}

func allocatorOptions(opts Options, ua string) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.UserAgent(ua),
		chromedp.WindowSize(1366, 768),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", "en-US"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.Headed {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.NoSandbox {
		out = append(out, chromedp.NoSandbox)
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

func pickUserAgent(intn func(int) int) string {
	return userAgents[intn(len(userAgents))]
}

// Close shuts the tab and the browser process. It is safe to call twice.
func (s *Session) Close() {
	if s == nil {
		return
	}
	if s.cancelTab != nil {
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("closing browser tab", zap.Error(err))
		}
		s.cancelTab()
		s.cancelTab = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}
