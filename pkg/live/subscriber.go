package live

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// SubscribeURL adds the record parameter to a hub endpoint.
func SubscribeURL(endpoint, record string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("live: parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set(RecordParam, record)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscriber keeps a form's initial values in step with a hub record. It
// reconnects until closed.
type Subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc

	url      string
	form     *form.Form
	settings *Settings
	dialer   *websocket.Dialer

	mu        sync.Mutex
	connected bool
	received  int
	done      chan struct{}
}

// Subscribe connects to rawURL and starts applying events to f. Values are
// applied on the form's loop.
func Subscribe(ctx context.Context, rawURL string, f *form.Form, settings *Settings) *Subscriber {
	settings = settings.normalize()
	cancelCtx, cancel := context.WithCancel(ctx)
	s := &Subscriber{
		ctx:      cancelCtx,
		cancel:   cancel,
		url:      rawURL,
		form:     f,
		settings: settings,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
		},
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Connected reports whether a connection is currently open.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Received returns the number of events received.
func (s *Subscriber) Received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

// Close stops the subscriber and waits for its connection to end.
func (s *Subscriber) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscriber) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

func (s *Subscriber) run() {
	defer close(s.done)
	defer s.cancel()

	for {
		ws, _, err := s.dialer.DialContext(s.ctx, s.url, s.settings.Header)
		if err != nil {
			glog.Infof("live: connect %s = %s", s.url, err)
		} else {
			s.handle(ws)
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.settings.ReconnectTimeout):
		}
	}
}

func (s *Subscriber) handle(ws *websocket.Conn) {
	defer ws.Close()
	s.setConnected(true)
	defer s.setConnected(false)

	handleCtx, handleCancel := context.WithCancel(s.ctx)
	defer handleCancel()

	go func() {
		defer handleCancel()
		for {
			select {
			case <-handleCtx.Done():
				ws.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout))
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				ws.Close()
				return
			case <-time.After(s.settings.PingTimeout):
				ws.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		ws.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if handleCtx.Err() == nil {
				glog.Infof("live: %s<- error = %s", s.url, err)
			}
			return
		}
		if messageType != websocket.TextMessage || len(message) == 0 {
			continue
		}
		ev, err := decodeEvent(message)
		if err != nil {
			glog.Warningf("%s", err)
			continue
		}
		s.mu.Lock()
		s.received++
		s.mu.Unlock()
		glog.V(2).Infof("live: %s<- %s", s.url, ev.Record)
		s.apply(ev.Values)
	}
}

func (s *Subscriber) apply(tree values.Tree) {
	f := s.form
	f.Loop().Post(func() { f.SetInitialValues(tree) })
}
