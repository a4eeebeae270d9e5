package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers auth emails (confirmation and recovery links).
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes emails to the log instead of sending them. Used in
// development where links are copied from the server output.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// SESMailer sends email through Amazon SES.
type SESMailer struct {
	client *ses.Client
	from   string
}

// NewSESMailer loads the default AWS configuration for region and returns a
// mailer sending from the given address.
func NewSESMailer(ctx context.Context, region, from string) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(cfg), from: from}, nil
}

// Send delivers msg through SES.
func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(msg.Subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(msg.Body),
				},
			},
		},
		Source: aws.String(m.from),
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("sending email via ses: %w", err)
	}
	return nil
}

func confirmationMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Confirm your email",
		Body:    fmt.Sprintf("Welcome to Wellness Tracker.\n\nConfirm your email address by opening this link:\n%s\n\nThe link expires in 24 hours.", link),
	}
}

func recoveryMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Someone asked to reset the password for this account.\n\nChoose a new password here:\n%s\n\nThe link expires in 1 hour. Ignore this email if it wasn't you.", link),
	}
}
