package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
	"github.com/yyup/kadmin/internal/utils"
)

const loginTimeout = 5 * time.Second

// LoginProbe posts credentials to the product's login endpoint once and
// reports what came back.
type LoginProbe struct {
	url     string
	timeout time.Duration
	client  httpDoer
	logger  *zap.SugaredLogger
}

func NewLoginProbe(cfg config.APIConfig, logger *zap.SugaredLogger) *LoginProbe {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = loginTimeout
	}
	if logger == nil {
		logger = utils.Logger().Sugar()
	}

	return &LoginProbe{
		url:     cfg.LoginURL(),
		timeout: timeout,
		client:  newHTTPClientWithTimeout(timeout),
		logger:  logger,
	}
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success *bool  `json:"success"`
	Token   string `json:"token"`
	Data    struct {
		Token string `json:"token"`
	} `json:"data"`
}

// httpResponse releases the response body through io.Closer.
type httpResponse struct {
	*http.Response
}

func (r httpResponse) Close() error {
	return r.Body.Close()
}

// Check performs one login attempt. A non-2xx status is reported with the
// server's error message and returned as an *probe.OperationError.
func (p *LoginProbe) Check(ctx context.Context, username, password string, rep *report.Reporter) error {
	return probe.Run(ctx, probe.Probe[httpResponse]{
		Name: "POST " + p.url,
		Open: func(ctx context.Context) (httpResponse, error) {
			return p.post(ctx, username, password)
		},
		Action: func(ctx context.Context, resp httpResponse, rep *report.Reporter) error {
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return classifyTransport("POST "+p.url, p.timeout, fmt.Errorf("read login response: %w", err))
			}

			rep.Info("status: %d", resp.StatusCode)
			if snippet := bodySnippet(body); snippet != "" {
				rep.Info("body: %s", snippet)
			}

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				msg := errorMessage(resp.StatusCode, body)
				rep.Info("error: %s", msg)
				return fmt.Errorf("login rejected with status %d: %s", resp.StatusCode, msg)
			}

			var decoded loginResponse
			if err := json.Unmarshal(body, &decoded); err != nil {
				rep.Warn("response is not JSON: %v", err)
				return nil
			}
			if decoded.Success != nil && !*decoded.Success {
				msg := errorMessage(resp.StatusCode, body)
				rep.Info("error: %s", msg)
				return fmt.Errorf("login reported failure: %s", msg)
			}
			if decoded.Token != "" || decoded.Data.Token != "" {
				rep.Success("login ok, token returned")
			} else {
				rep.Warn("login ok, no token in response")
			}
			return nil
		},
	}, rep)
}

func (p *LoginProbe) post(ctx context.Context, username, password string) (httpResponse, error) {
	body, err := json.Marshal(loginPayload{Username: username, Password: password})
	if err != nil {
		return httpResponse{}, fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return httpResponse{}, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Debugw("posting login request", "url", p.url, "username", username)

	resp, err := p.client.Do(req)
	if err != nil {
		return httpResponse{}, classifyTransport("POST "+p.url, p.timeout, err)
	}
	return httpResponse{resp}, nil
}
