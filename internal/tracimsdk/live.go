package tracimsdk

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/openmined/trsync/internal/remote"
)

const (
	TransportSSE       = "sse"
	TransportWebsocket = "websocket"

	wsMaxMessageSize = 4 * 1024 * 1024
	sseMaxLineSize   = 4 * 1024 * 1024
)

var ErrUnknownTransport = errors.New("sdk: unknown live message transport")

// Listener returns the live message listener for the given transport.
func (c *Client) Listener(transport string) (remote.Listener, error) {
	switch transport {
	case "", TransportSSE:
		return &sseListener{client: c}, nil
	case TransportWebsocket:
		return &wsListener{client: c}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, transport)
}

func (c *Client) liveMessagesPath(ctx context.Context) (string, error) {
	userID, err := c.Whoami(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/users/%d/live_messages", userID), nil
}

func forward(ctx context.Context, messages chan<- remote.LiveMessage, msg remote.LiveMessage) error {
	select {
	case messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type sseListener struct {
	client *Client
}

func (l *sseListener) Listen(ctx context.Context, messages chan<- remote.LiveMessage) error {
	path, err := l.client.liveMessagesPath(ctx)
	if err != nil {
		return err
	}

	resp, err := l.client.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		DisableAutoReadResponse().
		Get(path)
	if err := handleAPIError(resp, err, "live messages"); err != nil {
		return err
	}
	defer resp.Body.Close()
	slog.Info("live messages connected", "transport", TransportSSE)

	return readSSE(ctx, bufio.NewScanner(resp.Body), messages)
}

// readSSE decodes `event:`/`data:` blocks. Comment lines are keep-alives.
func readSSE(ctx context.Context, scanner *bufio.Scanner, messages chan<- remote.LiveMessage) error {
	scanner.Buffer(make([]byte, 64*1024), sseMaxLineSize)

	eventName := ""
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 && (eventName == "" || eventName == "message") {
				var msg remote.LiveMessage
				if err := jsonUnmarshal([]byte(data.String()), &msg); err != nil {
					slog.Warn("live message decode", "error", err)
				} else if err := forward(ctx, messages, msg); err != nil {
					return err
				}
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			if err := forward(ctx, messages, remote.LiveMessage{}); err != nil {
				return err
			}
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("live messages: %w", err)
	}
	return nil
}

type wsListener struct {
	client *Client
}

func (l *wsListener) Listen(ctx context.Context, messages chan<- remote.LiveMessage) error {
	path, err := l.client.liveMessagesPath(ctx)
	if err != nil {
		return err
	}

	config := l.client.config
	wsURL := convertToWebsocketURL(config.BaseURL() + path)
	auth := base64.StdEncoding.EncodeToString([]byte(config.Username + ":" + config.Password))

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Basic " + auth}},
	})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("live messages: %w", remote.ErrUnauthorized)
		}
		return fmt.Errorf("live messages: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(wsMaxMessageSize)
	slog.Info("live messages connected", "transport", TransportWebsocket)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("live messages: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg remote.LiveMessage
		if err := jsonUnmarshal(data, &msg); err != nil {
			slog.Warn("live message decode", "error", err)
			continue
		}
		if err := forward(ctx, messages, msg); err != nil {
			return err
		}
	}
}

// convertToWebsocketURL converts HTTP URLs to WebSocket URLs
func convertToWebsocketURL(url string) string {
	switch {
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "ws://" + url[7:]
	case strings.HasPrefix(url, "https://"):
		return "wss://" + url[8:]
	default:
		return "wss://" + url
	}
}
