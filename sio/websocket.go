/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Comcast/arbor/util"

	"github.com/gorilla/websocket"
)

// WebSocketHub is a Tap that broadcasts digests to WebSocket clients.
// It's also the http.Handler that accepts those clients.
type WebSocketHub struct {
	// Snapshot, if not nil, provides the first message a new
	// client receives.  It's called from the HTTP handler's
	// goroutine, so it must be safe to call there.
	Snapshot func() interface{}

	// Buffer is the number of messages queued per client.  A
	// client that falls further behind is dropped.
	Buffer int

	// WriteTimeout bounds each write to a client.
	WriteTimeout time.Duration

	upgrader websocket.Upgrader

	sync.Mutex
	clients map[*wsClient]bool
	stopped bool
}

type wsClient struct {
	conn *websocket.Conn
	out  chan []byte
}

// NewWebSocketHub makes a hub with a 32-message buffer per client.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		Buffer:       32,
		WriteTimeout: 5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*wsClient]bool),
	}
}

// Start does nothing.
func (h *WebSocketHub) Start(ctx context.Context) error {
	return nil
}

// Stop closes every client connection.
func (h *WebSocketHub) Stop(ctx context.Context) error {
	h.Lock()
	defer h.Unlock()
	h.stopped = true
	for c := range h.clients {
		h.drop(c)
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *WebSocketHub) Clients() int {
	h.Lock()
	defer h.Unlock()
	return len(h.clients)
}

// drop must be called with the lock held.
func (h *WebSocketHub) drop(c *wsClient) {
	if _, have := h.clients[c]; !have {
		return
	}
	delete(h.clients, c)
	close(c.out)
}

// Publish queues the digest for every client.
func (h *WebSocketHub) Publish(ctx context.Context, d *Digest) error {
	js, err := json.Marshal(d)
	if err != nil {
		return err
	}

	h.Lock()
	defer h.Unlock()
	for c := range h.clients {
		select {
		case c.out <- js:
		default:
			util.Logf("sio: dropping slow websocket client %s", c.conn.RemoteAddr())
			h.drop(c)
		}
	}
	return nil
}

// ServeHTTP upgrades the connection and registers the client.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Logf("sio: websocket upgrade error %s", err)
		return
	}

	c := &wsClient{
		conn: conn,
		out:  make(chan []byte, h.Buffer+1),
	}

	if h.Snapshot != nil {
		js, err := json.Marshal(&Digest{
			Kind: "snapshot",
			Data: h.Snapshot(),
		})
		if err != nil {
			util.Warnf("sio: snapshot error %s", err)
		} else {
			c.out <- js
		}
	}

	h.Lock()
	if h.stopped {
		h.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	h.Unlock()

	go h.write(c)
	h.read(c)
}

func (h *WebSocketHub) write(c *wsClient) {
	defer c.conn.Close()
	for js := range c.out {
		if 0 < h.WriteTimeout {
			c.conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, js); err != nil {
			util.Logf("sio: websocket write error %s", err)
			h.Lock()
			h.drop(c)
			h.Unlock()
			for range c.out {
			}
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// read discards anything the client sends until the client goes
// away.
func (h *WebSocketHub) read(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.Lock()
			h.drop(c)
			h.Unlock()
			return
		}
	}
}
