package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yyup/kadmin/internal/probe"
	"github.com/yyup/kadmin/internal/report"
	"github.com/yyup/kadmin/internal/utils"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsCloseGrace       = time.Second
)

// WebsocketProbe checks that an endpoint completes the websocket upgrade
// and, optionally, answers one text frame.
type WebsocketProbe struct {
	dialer  *websocket.Dialer
	token   string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewWebsocketProbe builds a probe; a non-empty token is sent as a bearer
// Authorization header during the handshake.
func NewWebsocketProbe(token string, timeout time.Duration, logger *zap.SugaredLogger) *WebsocketProbe {
	if timeout <= 0 {
		timeout = wsHandshakeTimeout
	}
	if logger == nil {
		logger = utils.Logger().Sugar()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = timeout

	return &WebsocketProbe{dialer: &dialer, token: token, timeout: timeout, logger: logger}
}

// wsConn closes with a normal-closure frame before dropping the socket.
type wsConn struct {
	*websocket.Conn
}

func (c wsConn) Close() error {
	deadline := time.Now().Add(wsCloseGrace)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && err != websocket.ErrCloseSent {
		c.Conn.Close()
		return fmt.Errorf("send close frame: %w", err)
	}
	return c.Conn.Close()
}

func (p *WebsocketProbe) Check(ctx context.Context, url, message string, rep *report.Reporter) error {
	return probe.Run(ctx, probe.Probe[wsConn]{
		Name: url,
		Open: func(ctx context.Context) (wsConn, error) {
			header := http.Header{}
			if p.token != "" {
				header.Set("Authorization", "Bearer "+p.token)
			}

			conn, resp, err := p.dialer.DialContext(ctx, url, header)
			if err != nil {
				if resp != nil {
					return wsConn{}, fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
				}
				if probe.IsTimeout(err) {
					return wsConn{}, &probe.TimeoutError{Target: url, After: p.timeout, Err: err}
				}
				return wsConn{}, err
			}

			rep.Info("upgrade status: %d", resp.StatusCode)
			return wsConn{conn}, nil
		},
		Action: func(ctx context.Context, conn wsConn, rep *report.Reporter) error {
			if message == "" {
				return nil
			}

			deadline := time.Now().Add(p.timeout)
			if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
				deadline = d
			}
			if err := conn.SetWriteDeadline(deadline); err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
			p.logger.Debugw("sent websocket message", "url", url, "bytes", len(message))

			if err := conn.SetReadDeadline(deadline); err != nil {
				return err
			}
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				if probe.IsTimeout(err) {
					return &probe.TimeoutError{Target: url, After: p.timeout, Err: err}
				}
				return fmt.Errorf("read reply: %w", err)
			}

			switch messageType {
			case websocket.TextMessage:
				rep.Info("reply: %s", bodySnippet(payload))
			default:
				rep.Info("reply: %d binary bytes", len(payload))
			}
			return nil
		},
	}, rep)
}
