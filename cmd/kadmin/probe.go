package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/yyup/kadmin/services"
)

func newProbeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check an external service once",
	}

	var username, password, baseURL string
	login := &cobra.Command{
		Use:   "login",
		Short: "POST credentials to the login endpoint and report the response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.API
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if username == "" {
				username = cfg.Username
			}
			if password == "" {
				password = cfg.Password
			}
			if password == "" {
				return errors.New("no password: set API_PASSWORD or pass --password")
			}
			return services.NewLoginProbe(cfg, a.sugar()).Check(cmd.Context(), username, password, a.rep)
		},
	}
	login.Flags().StringVar(&username, "username", "", "override API_USERNAME")
	login.Flags().StringVar(&password, "password", "", "override API_PASSWORD")
	login.Flags().StringVar(&baseURL, "base-url", "", "override API_BASE_URL")

	var text, out string
	var voices bool
	tts := &cobra.Command{
		Use:   "tts",
		Short: "Synthesize a short phrase or list voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := services.NewTTSProbe(a.cfg.TTS, a.sugar())
			if voices {
				return p.Voices(cmd.Context(), a.rep)
			}
			return p.Check(cmd.Context(), text, out, a.rep)
		},
	}
	tts.Flags().StringVar(&text, "text", "你好，欢迎来到幼儿园。", "text to synthesize")
	tts.Flags().StringVar(&out, "out", "", "write the audio to this file")
	tts.Flags().BoolVar(&voices, "voices", false, "list voices instead of synthesizing")

	var message, token string
	ws := &cobra.Command{
		Use:   "ws [url]",
		Short: "Complete a websocket handshake and optionally exchange one message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.cfg.TTS.WebsocketURL
			if len(args) == 1 {
				url = args[0]
			}
			if url == "" {
				return errors.New("no websocket url: set TTS_WEBSOCKET_URL or pass one")
			}
			if token == "" {
				token = a.cfg.TTS.APIKey
			}
			return services.NewWebsocketProbe(token, 0, a.sugar()).Check(cmd.Context(), url, message, a.rep)
		},
	}
	ws.Flags().StringVar(&message, "message", "", "text frame to send after the handshake")
	ws.Flags().StringVar(&token, "token", "", "bearer token for the handshake (default TTS_API_KEY)")

	cmd.AddCommand(login, tts, ws)
	return cmd
}
