package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
)

// TTSProbe checks that the TTS vendor accepts the configured key and
// returns audio.
type TTSProbe struct {
	svc     *TTSService
	token   string
	voice   string
	timeout time.Duration
	target  string
}

func NewTTSProbe(cfg config.TTSConfig, logger *zap.SugaredLogger) *TTSProbe {
	svc := NewTTSService(cfg, logger)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.Defaults().TTS.Timeout
	}
	return &TTSProbe{
		svc:     svc,
		token:   cfg.APIKey,
		voice:   cfg.VoiceType,
		timeout: timeout,
		target:  svc.baseURL,
	}
}

func (p *TTSProbe) open(ctx context.Context) (*TTSService, error) {
	if p.token == "" {
		return nil, fmt.Errorf("TTS_API_KEY is not set: %w", errTokenRequired)
	}
	return p.svc, nil
}

// Check synthesizes text once and reports the request id, audio size and
// duration. A non-empty outPath receives the audio.
func (p *TTSProbe) Check(ctx context.Context, text, outPath string, rep *report.Reporter) error {
	return probe.Run(ctx, probe.Probe[*TTSService]{
		Name: p.target,
		Open: p.open,
		Action: func(ctx context.Context, svc *TTSService, rep *report.Reporter) error {
			result, err := svc.Synthesize(ctx, p.token, TTSRequest{Text: text, VoiceType: p.voice})
			if err != nil {
				return classifyTransport(p.target, p.timeout, err)
			}

			rep.Info("request id: %s", result.ReqID)
			rep.Info("audio bytes: %d", len(result.Audio))
			if result.Duration != "" {
				rep.Info("duration: %s ms", result.Duration)
			}

			if outPath == "" {
				rep.Success("synthesis ok")
				return nil
			}
			if err := os.WriteFile(outPath, result.Audio, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			rep.Success("wrote %s", outPath)
			return nil
		},
	}, rep)
}

// Voices lists the voices available to the configured key.
func (p *TTSProbe) Voices(ctx context.Context, rep *report.Reporter) error {
	return probe.Run(ctx, probe.Probe[*TTSService]{
		Name: p.target,
		Open: p.open,
		Action: func(ctx context.Context, svc *TTSService, rep *report.Reporter) error {
			voices, err := svc.ListVoices(ctx, p.token)
			if err != nil {
				return classifyTransport(p.target, p.timeout, err)
			}

			rep.Info("voices:")
			for _, v := range voices {
				rep.Row([]string{"voice_type", "voice_name", "category"}, []any{v.VoiceType, v.VoiceName, v.Category})
			}
			rep.Summary(len(voices))
			return nil
		},
	}, rep)
}
