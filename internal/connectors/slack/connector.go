package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Expander resolves references in a message; empty means nothing to say.
type Expander interface {
	Expand(ctx context.Context, text, channel, source string) string
}

// Connector listens on the chat platform's RTM websocket and announces the
// same expansions the webhook does, so references typed in any channel the
// bot is in get expanded without the slash command.
type Connector struct {
	token      string
	apiBase    string
	expander   Expander
	httpClient *http.Client
	logger     *slog.Logger

	writeMu sync.Mutex
	nextID  int64
	selfID  string
}

func New(token, apiBase string, expander Expander, logger *slog.Logger) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://slack.com/api"
	}
	return &Connector{
		token:      strings.TrimSpace(token),
		apiBase:    strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		expander:   expander,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (c *Connector) Name() string {
	return "slack-rtm"
}

func (c *Connector) Start(ctx context.Context) error {
	if c.token == "" {
		c.logger.Info("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.expander == nil {
		c.logger.Info("connector disabled, expander missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "api_base", c.apiBase)
	for {
		if ctx.Err() != nil {
			c.logger.Info("connector stopped")
			return nil
		}
		if err := c.runSession(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("rtm session failed", "error", err)
			select {
			case <-ctx.Done():
				c.logger.Info("connector stopped")
				return nil
			case <-time.After(3 * time.Second):
			}
		}
	}
}

func (c *Connector) runSession(ctx context.Context) error {
	wsURL, selfID, err := c.connectRTM(ctx)
	if err != nil {
		return err
	}
	c.selfID = selfID

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial rtm socket: %w", err)
	}
	defer conn.Close()
	c.logger.Info("rtm socket connected", "self_id", selfID)

	// Unblock ReadJSON when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var event rtmEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read rtm event: %w", err)
		}
		c.handleEvent(ctx, conn, event)
	}
}

func (c *Connector) handleEvent(ctx context.Context, conn *websocket.Conn, event rtmEvent) {
	if event.Type != "message" || event.Subtype != "" {
		return
	}
	if event.User == "" || event.User == c.selfID {
		return
	}
	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}

	reply := c.expander.Expand(ctx, text, event.Channel, "rtm")
	if reply == "" {
		return
	}
	if err := c.sendMessage(conn, event.Channel, reply); err != nil {
		c.logger.Error("rtm send failed", "channel", event.Channel, "error", err)
	}
}

func (c *Connector) sendMessage(conn *websocket.Conn, channel, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.nextID++
	return conn.WriteJSON(outgoingMessage{
		ID:      c.nextID,
		Type:    "message",
		Channel: channel,
		Text:    text,
	})
}

func (c *Connector) connectRTM(ctx context.Context) (string, string, error) {
	endpoint := c.apiBase + "/rtm.connect"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()

	var payload rtmConnectResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", "", fmt.Errorf("decode rtm.connect: %w", err)
	}
	if !payload.OK || strings.TrimSpace(payload.URL) == "" {
		return "", "", fmt.Errorf("rtm.connect failed: %s", payload.Error)
	}
	return payload.URL, payload.Self.ID, nil
}

type rtmConnectResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	URL   string `json:"url"`
	Self  struct {
		ID string `json:"id"`
	} `json:"self"`
}

type rtmEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	TS      string `json:"ts"`
}

type outgoingMessage struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Text    string `json:"text"`
}
