package notify

import (
	"context"
	"errors"
	"sync"
)

// SentMessage records a single call to a mock sender.
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// MockSender is a test double satisfying all three sender interfaces.
type MockSender struct {
	mu         sync.Mutex
	calls      []SentMessage
	ShouldFail bool
	FailError  string
}

func (m *MockSender) record(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SentMessage{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		if m.FailError == "" {
			return errors.New("send failed")
		}
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockSender) SendSMS(_ context.Context, to, body string) error {
	return m.record(to, "", body)
}

func (m *MockSender) SendEmail(_ context.Context, to, subject, body string) error {
	return m.record(to, subject, body)
}

func (m *MockSender) SendPush(_ context.Context, deviceToken, title, body string) error {
	return m.record(deviceToken, title, body)
}

// SetShouldFail toggles failure mode.
func (m *MockSender) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = fail
}

// Calls returns a copy of recorded messages.
func (m *MockSender) Calls() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.calls))
	copy(out, m.calls)
	return out
}
