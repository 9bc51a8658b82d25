package session

import "time"

// Kind is the tone of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a transient message for the user. It stops being
// reported once ExpiresAt has passed.
type Notification struct {
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Success reports whether the notification is a success message.
func (n Notification) Success() bool {
	return n.Kind == KindSuccess
}

func (s *Session) notify(kind Kind, msg string) Notification {
	n := Notification{Kind: kind, Message: msg, ExpiresAt: s.now().Add(s.ttl)}
	s.mu.Lock()
	s.notice = &n
	s.mu.Unlock()
	return n
}

// Notification returns the current notification unless it has expired.
func (s *Session) Notification() (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notice == nil {
		return Notification{}, false
	}
	if !s.now().Before(s.notice.ExpiresAt) {
		s.notice = nil
		return Notification{}, false
	}
	return *s.notice, true
}

// Dismiss clears the current notification.
func (s *Session) Dismiss() {
	s.mu.Lock()
	s.notice = nil
	s.mu.Unlock()
}
