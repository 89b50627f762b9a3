package main

import (
	"github.com/spf13/cobra"

	"github.com/yyup/kadmin/internal/browser"
)

func newBrowseCmd(a *app) *cobra.Command {
	var (
		url        string
		screenshot string
		clicks     []string
		hold       bool
		headed     bool
	)

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Open the admin login page in a browser",
		Long: `Launches a browser, opens BROWSER_URL, clicks the given selectors in
order and optionally saves a screenshot. With --hold the browser stays open
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Browser
			if url != "" {
				cfg.URL = url
			}
			if screenshot != "" {
				cfg.ScreenshotPath = screenshot
			}
			if headed {
				cfg.Headless = false
			}
			return browser.Run(cmd.Context(), cfg, browser.Options{Clicks: clicks, Hold: hold}, a.rep)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "override BROWSER_URL")
	cmd.Flags().StringVar(&screenshot, "screenshot", "", "save a PNG screenshot to this path")
	cmd.Flags().StringArrayVar(&clicks, "click", nil, "CSS selector to click, repeatable (e.g. .admin-btn)")
	cmd.Flags().BoolVar(&hold, "hold", false, "keep the browser open until Ctrl+C")
	cmd.Flags().BoolVar(&headed, "headed", false, "show the browser window")
	return cmd
}
