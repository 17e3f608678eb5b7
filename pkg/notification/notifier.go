package notification

// NotificationData carries one outbound notification.
type NotificationData struct {
	To     string            // Recipient address
	ToName string            // Optional display name for the recipient
	Data   map[string]string // Template data (addresses, URLs, timestamps...)
}

// NoticeTemplate holds the rendered pieces of a registered notice.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier delivers one notification through a specific system.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
