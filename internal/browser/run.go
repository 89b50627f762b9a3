package browser

import (
	"context"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
)

// Options controls the fixed action sequence of a browser run.
type Options struct {
	// Clicks are CSS selectors clicked in order after the page loads.
	Clicks []string
	// Hold keeps the browser open until the context is cancelled.
	Hold bool
}

// Run launches a browser, visits cfg.URL, performs the clicks, optionally
// saves a screenshot to cfg.ScreenshotPath, then holds or closes.
func Run(ctx context.Context, cfg config.BrowserConfig, opts Options, rep *report.Reporter) error {
	return run(ctx, cfg, opts, rep, Launch)
}

func run(ctx context.Context, cfg config.BrowserConfig, opts Options, rep *report.Reporter, launch func(context.Context, config.BrowserConfig) (*Session, error)) error {
	return probe.Run(ctx, probe.Probe[*Session]{
		Name: "browser",
		Open: func(ctx context.Context) (*Session, error) {
			return launch(ctx, cfg)
		},
		Action: func(ctx context.Context, s *Session, rep *report.Reporter) error {
			title, err := s.Visit(ctx, cfg.URL)
			if err != nil {
				return err
			}
			rep.Success("opened %s", cfg.URL)
			if title != "" {
				rep.Detail("title: %s", title)
			}

			for _, selector := range opts.Clicks {
				if err := s.Click(ctx, selector); err != nil {
					return err
				}
				rep.Info("clicked %s", selector)
			}

			if cfg.ScreenshotPath != "" {
				if err := s.Screenshot(ctx, cfg.ScreenshotPath); err != nil {
					return err
				}
				rep.Info("screenshot saved to %s", cfg.ScreenshotPath)
			}

			if !opts.Hold {
				return nil
			}
			rep.Info("browser is open, press Ctrl+C to close")
			return s.Hold(ctx)
		},
	}, rep)
}
