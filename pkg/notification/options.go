package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// ManagerOption is a function that configures a Manager
type ManagerOption func(*Manager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) ManagerOption {
	return func(m *Manager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		m.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithNotifier registers an arbitrary notifier for a system
func WithNotifier(system NotificationSystem, notifier Notifier) ManagerOption {
	return func(m *Manager) error {
		m.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithSecondaryConfirmationTemplate registers the confirmation mail template
func WithSecondaryConfirmationTemplate() ManagerOption {
	return func(m *Manager) error {
		return m.RegisterNotification(SecondaryConfirmationNotice, EmailSystem, NoticeTemplate{
			Subject: "Confirm your email address",
			Text:    loadTemplate("templates/email/secondary_confirmation.tmpl"),
		})
	}
}

// WithPrimaryChangedTemplate registers the primary-address-changed template
func WithPrimaryChangedTemplate() ManagerOption {
	return func(m *Manager) error {
		return m.RegisterNotification(PrimaryChangedNotice, EmailSystem, NoticeTemplate{
			Subject: "Your primary email address was changed",
			Text:    loadTemplate("templates/email/primary_changed.tmpl"),
		})
	}
}
