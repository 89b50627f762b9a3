package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/utils"
)

// TTSRequest encapsulates a synthesis task forwarded to the TTS vendor.
type TTSRequest struct {
	Text       string
	VoiceType  string
	Encoding   string
	SpeedRatio float64
}

// TTSResult is the simplified synthesis response.
type TTSResult struct {
	ReqID    string          `json:"reqid"`
	Audio    []byte          `json:"audio"`
	Duration string          `json:"duration"`
	Raw      json.RawMessage `json:"raw"`
}

// VoiceInfo describes a voice returned by /voice/list.
type VoiceInfo struct {
	VoiceName string `json:"voice_name"`
	VoiceType string `json:"voice_type"`
	URL       string `json:"url"`
	Category  string `json:"category"`
	UpdateMS  int64  `json:"updatetime"`
}

var errTokenRequired = errors.New("authorization token is required")

// TTSService wraps the vendor's RESTful TTS API.
type TTSService struct {
	baseURL       string
	defaultVoice  string
	defaultFormat string
	client        httpDoer
	logger        *zap.SugaredLogger
}

// NewTTSService constructs a TTSService configured with defaults from cfg.
func NewTTSService(cfg config.TTSConfig, logger *zap.SugaredLogger) *TTSService {
	defaults := config.Defaults().TTS

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaults.BaseURL
	}

	voice := strings.TrimSpace(cfg.VoiceType)
	if voice == "" {
		voice = defaults.VoiceType
	}

	format := strings.TrimSpace(cfg.Format)
	if format == "" {
		format = defaults.Format
	}

	if logger == nil {
		logger = utils.Logger().Sugar()
	}

	// TTS responses can be slow; the timeout is longer than other probes.
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}

	return &TTSService{
		baseURL:       base,
		defaultVoice:  voice,
		defaultFormat: format,
		client:        newHTTPClientWithTimeout(timeout),
		logger:        logger,
	}
}

// Close releases idle keep-alive connections.
func (s *TTSService) Close() error {
	if c, ok := s.client.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
	return nil
}

// Synthesize sends a text-to-speech request and returns the decoded audio.
func (s *TTSService) Synthesize(ctx context.Context, token string, req TTSRequest) (*TTSResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errTokenRequired
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("tts text cannot be empty")
	}

	voice := strings.TrimSpace(req.VoiceType)
	if voice == "" {
		voice = s.defaultVoice
	}

	encoding := strings.TrimSpace(req.Encoding)
	if encoding == "" {
		encoding = s.defaultFormat
	}

	speed := req.SpeedRatio
	if speed <= 0 {
		speed = 1.0
	}

	payload := map[string]interface{}{
		"audio": map[string]interface{}{
			"voice_type":  voice,
			"encoding":    encoding,
			"speed_ratio": speed,
		},
		"request": map[string]interface{}{
			"text": text,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tts payload: %w", err)
	}

	endpoint := s.baseURL + "/voice/tts"
	reqHTTP, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}

	reqHTTP.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	reqHTTP.Header.Set("Content-Type", "application/json")

	s.logger.Debugw("calling tts api", "endpoint", endpoint, "voice", voice, "encoding", encoding)

	resp, err := s.client.Do(reqHTTP)
	if err != nil {
		return nil, fmt.Errorf("call tts api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, buildAPIError("tts", resp.StatusCode, respBody)
	}

	var envelope ttsAPIResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("decode tts response: %w", err)
	}

	if envelope.Error != nil && envelope.Error.Message != "" {
		return nil, fmt.Errorf("tts error: %s", envelope.Error.Message)
	}

	if envelope.Data == "" {
		return nil, fmt.Errorf("tts response contained no audio data")
	}

	audio, err := base64.StdEncoding.DecodeString(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("decode tts audio: %w", err)
	}

	return &TTSResult{
		ReqID:    envelope.ReqID,
		Audio:    audio,
		Duration: envelope.Addition.Duration,
		Raw:      json.RawMessage(respBody),
	}, nil
}

// ListVoices fetches available TTS voices.
func (s *TTSService) ListVoices(ctx context.Context, token string) ([]VoiceInfo, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errTokenRequired
	}

	endpoint := s.baseURL + "/voice/list"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create voice list request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call voice list api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read voice list response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, buildAPIError("tts", resp.StatusCode, body)
	}

	var voices []VoiceInfo
	if err := json.Unmarshal(body, &voices); err != nil {
		return nil, fmt.Errorf("decode voice list response: %w", err)
	}

	return voices, nil
}

type ttsAPIResponse struct {
	ReqID     string      `json:"reqid"`
	Operation string      `json:"operation"`
	Sequence  int         `json:"sequence"`
	Data      string      `json:"data"`
	Addition  ttsAddition `json:"addition"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type ttsAddition struct {
	Duration string `json:"duration"`
}
