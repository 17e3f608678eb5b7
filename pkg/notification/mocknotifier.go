package notification

import "sync"

// SentNotification records one delivery made through a MockNotifier.
type SentNotification struct {
	NoticeType   NoticeType
	Notification NotificationData
	Template     NoticeTemplate
}

// MockNotifier records notifications instead of delivering them.
type MockNotifier struct {
	mu   sync.Mutex
	Sent []SentNotification

	// Err, when set, is returned by Send to simulate dispatch failures.
	Err error
}

func (m *MockNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Sent = append(m.Sent, SentNotification{
		NoticeType:   noticeType,
		Notification: notification,
		Template:     template,
	})
	return nil
}

// Last returns the most recently recorded notification, or nil.
func (m *MockNotifier) Last() *SentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}
