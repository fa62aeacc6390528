// Package live keeps inline forms in step with records edited elsewhere.
//
// A Hub broadcasts record changes to websocket subscribers. A Subscriber
// receives them and feeds each new record to form.SetInitialValues on the
// form's loop, so an external refresh replaces the form baseline without
// being treated as a user edit.
package live

import (
	"net/http"
	"time"
)

type Settings struct {
	HandshakeTimeout time.Duration
	ReconnectTimeout time.Duration
	PingTimeout      time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	// SendBuffer is the number of events queued per subscriber before
	// events are dropped.
	SendBuffer int
	// Header is sent with the subscriber handshake, e.g. an Authorization
	// header.
	Header http.Header
}

func DefaultSettings() *Settings {
	return &Settings{
		HandshakeTimeout: 2 * time.Second,
		ReconnectTimeout: 5 * time.Second,
		PingTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      15 * time.Second,
		SendBuffer:       16,
	}
}

func (s *Settings) normalize() *Settings {
	defaults := DefaultSettings()
	if s == nil {
		return defaults
	}
	out := *s
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if out.ReconnectTimeout <= 0 {
		out.ReconnectTimeout = defaults.ReconnectTimeout
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = defaults.PingTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = defaults.WriteTimeout
	}
	// pings must arrive before the read deadline expires
	if out.ReadTimeout <= out.PingTimeout {
		out.ReadTimeout = 3 * out.PingTimeout
	}
	if out.SendBuffer <= 0 {
		out.SendBuffer = defaults.SendBuffer
	}
	return &out
}
