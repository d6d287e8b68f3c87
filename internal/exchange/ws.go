package exchange

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient exchanges utterances over a persistent WebSocket channel: one
// outbound binary message per utterance, the next inbound binary message is
// the correlated response. The session controller serializes exchanges, so
// at most one is ever in flight.
type WSClient struct {
	url       string
	accessKey string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	inbound   chan []byte
	stopCh    chan struct{}
}

func NewWSClient(url, accessKey string) *WSClient {
	return &WSClient{url: url, accessKey: accessKey}
}

// Connect establishes the channel and starts the read pump. Calling it while
// connected is a no-op.
func (c *WSClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	headers := http.Header{}
	if c.accessKey != "" {
		headers.Set("Authorization", "Bearer "+c.accessKey)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(c.url, headers)
	if err != nil {
		if resp != nil {
			log.Printf("exchange: ws connect failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: dial %s: %v", ErrTransportUnavailable, c.url, err)
	}

	c.conn = conn
	c.connected = true
	c.inbound = make(chan []byte, 4)
	c.stopCh = make(chan struct{})
	go c.readPump(conn, c.inbound, c.stopCh)
	return nil
}

// Ready reports whether the channel is usable.
func (c *WSClient) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *WSClient) Send(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.RLock()
	conn := c.conn
	inbound := c.inbound
	connected := c.connected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return nil, fmt.Errorf("%w: channel not open", ErrTransportUnavailable)
	}

	// Correlation is positional: a frame still queued from an exchange whose
	// caller stopped waiting would otherwise answer this send.
drain:
	for {
		select {
		case stale, ok := <-inbound:
			if !ok {
				c.markDisconnected()
				return nil, fmt.Errorf("%w: channel closed", ErrTransportUnavailable)
			}
			log.Printf("exchange: dropping %d stale response bytes", len(stale))
		default:
			break drain
		}
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		c.markDisconnected()
		return nil, fmt.Errorf("%w: write: %v", ErrTransportUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrRemoteRejected, ctx.Err())
	case resp, ok := <-inbound:
		if !ok {
			c.markDisconnected()
			return nil, fmt.Errorf("%w: channel closed awaiting response", ErrTransportUnavailable)
		}
		if len(resp) == 0 {
			return nil, ErrEmptyResponse
		}
		return resp, nil
	}
}

// Close tears the channel down. Safe to call repeatedly.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	close(c.stopCh)
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
		c.conn = nil
	}
	return nil
}

func (c *WSClient) markDisconnected() {
	c.mu.Lock()
	if c.connected {
		c.connected = false
		close(c.stopCh)
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
	}
	c.mu.Unlock()
}

// readPump delivers inbound binary frames; text frames are control noise from
// some backends and are logged and dropped.
func (c *WSClient) readPump(conn *websocket.Conn, inbound chan []byte, stopCh chan struct{}) {
	defer close(inbound)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stopCh:
			default:
				log.Printf("exchange: ws read error: %v", err)
				c.markDisconnected()
			}
			return
		}
		if mt != websocket.BinaryMessage {
			log.Printf("exchange: dropping non-binary frame (%d bytes)", len(data))
			continue
		}
		select {
		case inbound <- data:
		default:
			log.Printf("exchange: inbound buffer full, dropping frame")
		}
	}
}
