package notification

import (
	"fmt"
)

// NotificationSystem represents a delivery system (e.g. email, SMS).
type NotificationSystem string

// NoticeType represents a kind of notice (e.g. "secondary_email_confirmation").
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	// SecondaryConfirmationNotice asks the owner of a freshly added
	// secondary address to prove ownership via a confirmation link.
	SecondaryConfirmationNotice NoticeType = "secondary_email_confirmation"
	// PrimaryChangedNotice informs both the old and new primary address
	// that the account's primary email was swapped.
	PrimaryChangedNotice NoticeType = "primary_email_changed"
)

// Manager routes notices to registered notifiers using registered templates.
type Manager struct {
	notifiers map[NotificationSystem]Notifier
	registry  map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewManager creates a Manager and applies the given options.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		notifiers: make(map[NotificationSystem]Notifier),
		registry:  make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RegisterNotifier registers a notifier for a delivery system.
func (m *Manager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	m.notifiers[system] = notifier
}

// RegisterNotification registers a template for a notice type and system.
func (m *Manager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid template: at least one of Text or Html is required")
	}

	if _, exists := m.registry[noticeType]; !exists {
		m.registry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	m.registry[noticeType][system] = template

	return nil
}

// Send delivers the notice through every system it is registered for.
func (m *Manager) Send(noticeType NoticeType, notification NotificationData) error {
	systemTemplates, exists := m.registry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	for system, template := range systemTemplates {
		notifier, exists := m.notifiers[system]
		if !exists {
			return fmt.Errorf("no notifier registered for system: %s", system)
		}

		if err := notifier.Send(noticeType, notification, template); err != nil {
			return fmt.Errorf("failed to send %s via %s: %w", noticeType, system, err)
		}
	}

	return nil
}
