package live

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/goliatone/go-inlineform/pkg/values"
)

// RecordParam is the query parameter naming the record to subscribe to.
const RecordParam = "record"

var ErrHubClosed = errors.New("live: hub closed")

// AuthorizeFunc vets a subscription request before the upgrade.
type AuthorizeFunc func(r *http.Request) error

// Hub fans record events out to websocket subscribers.
type Hub struct {
	settings  *Settings
	upgrader  websocket.Upgrader
	authorize AuthorizeFunc

	mu      sync.Mutex
	clients map[string]map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	record string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *hubClient) stop() { c.once.Do(func() { close(c.done) }) }

func NewHub(settings *Settings, authorize AuthorizeFunc) *Hub {
	settings = settings.normalize()
	return &Hub{
		settings:  settings,
		authorize: authorize,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: settings.HandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		clients: map[string]map[*hubClient]struct{}{},
	}
}

// Subscribers returns the number of open subscriptions for record.
func (h *Hub) Subscribers(record string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[record])
}

// Publish sends the record's current values to its subscribers. Subscribers
// whose queue is full miss the event.
func (h *Hub) Publish(record string, tree values.Tree) error {
	data, err := encodeEvent(Event{Record: record, Values: tree})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	for c := range h.clients[record] {
		select {
		case c.send <- data:
		default:
			glog.Warningf("live: drop event for %s, subscriber queue full", record)
		}
	}
	glog.V(2).Infof("live: published %s to %d subscribers", record, len(h.clients[record]))
	return nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.clients {
		for c := range set {
			c.stop()
		}
	}
	h.clients = map[string]map[*hubClient]struct{}{}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	record := r.URL.Query().Get(RecordParam)
	if record == "" {
		http.Error(w, "missing record", http.StatusBadRequest)
		return
	}
	if h.authorize != nil {
		if err := h.authorize(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already wrote the response
		glog.Infof("live: upgrade %s: %s", record, err)
		return
	}

	c := &hubClient{
		record: record,
		send:   make(chan []byte, h.settings.SendBuffer),
		done:   make(chan struct{}),
	}
	if !h.register(c) {
		ws.Close()
		return
	}
	defer h.unregister(c)

	go h.write(ws, c)
	h.read(ws, c)
}

func (h *Hub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.record]
	if !ok {
		set = map[*hubClient]struct{}{}
		h.clients[c.record] = set
	}
	set[c] = struct{}{}
	glog.V(1).Infof("live: subscribe %s", c.record)
	return true
}

func (h *Hub) unregister(c *hubClient) {
	c.stop()
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.record]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.record)
		}
	}
	glog.V(1).Infof("live: unsubscribe %s", c.record)
}

func (h *Hub) write(ws *websocket.Conn, c *hubClient) {
	defer ws.Close()
	for {
		select {
		case <-c.done:
			ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				glog.Infof("live: %s-> error = %s", c.record, err)
				c.stop()
				return
			}
		case <-time.After(h.settings.PingTimeout):
			ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			// an empty message keeps the subscriber's read deadline fresh
			if err := ws.WriteMessage(websocket.TextMessage, nil); err != nil {
				c.stop()
				return
			}
		}
	}
}

// read drains client messages until the connection fails. Subscribers do not
// send anything meaningful; reading only detects the close.
func (h *Hub) read(ws *websocket.Conn, c *hubClient) {
	for {
		select {
		case <-c.done:
			return
		default:
		}
		ws.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
		if _, _, err := ws.ReadMessage(); err != nil {
			glog.V(2).Infof("live: %s<- error = %s", c.record, err)
			return
		}
	}
}
