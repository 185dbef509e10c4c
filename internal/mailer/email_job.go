package mailer

// EmailJob is the JSON payload put on the RabbitMQ queue. Either Template
// with Data, or Subject with Text (and optionally HTML), must be set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}
