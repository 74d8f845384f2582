package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/pittsbowling/api/pkg/logger"
)

// Notifier defines the outbound email surface of the API.
type Notifier interface {
	SendTwoFactorCode(ctx context.Context, email, name, code string) error
	SendVerificationLink(ctx context.Context, email, name, link string) error
	SendPasswordResetLink(ctx context.Context, email, name, link string) error
	SendReservationUpdate(ctx context.Context, email, name, message string) error
}

// AWSSESNotifier sends emails using AWS SES
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier
func NewAWSSESNotifier(region, fromAddress string, log *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      log,
	}, nil
}

// SendTwoFactorCode delivers the six-digit login code.
func (s *AWSSESNotifier) SendTwoFactorCode(ctx context.Context, email, name, code string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1 style="background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px;">Your login code</h1>
        <p>Hi %s,</p>
        <p>Use this code to finish signing in to Pitts Bowling:</p>
        <p style="font-size: 32px; letter-spacing: 8px; text-align: center; font-weight: bold;">%s</p>
        <p>The code expires in 5 minutes. If you didn't try to sign in, change your password now.</p>
        <p style="color: #666; font-size: 12px; border-top: 1px solid #eee; padding-top: 20px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>`, name, code)

	textBody := fmt.Sprintf(`Hi %s,

Use this code to finish signing in to Pitts Bowling:

    %s

The code expires in 5 minutes. If you didn't try to sign in, change your password now.
`, name, code)

	return s.send(ctx, email, "Your Pitts Bowling login code", htmlBody, textBody)
}

// SendVerificationLink delivers the account-confirmation link.
func (s *AWSSESNotifier) SendVerificationLink(ctx context.Context, email, name, link string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1 style="background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px;">Confirm your email</h1>
        <p>Hi %s,</p>
        <p>Thanks for creating a Pitts Bowling account. Confirm your email address to start booking lanes:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Confirm email address</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>The link expires in 24 hours. If you didn't sign up, you can ignore this email.</p>
        <p style="color: #666; font-size: 12px; border-top: 1px solid #eee; padding-top: 20px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>`, name, link, link)

	textBody := fmt.Sprintf(`Hi %s,

Thanks for creating a Pitts Bowling account. Confirm your email address to start booking lanes:

%s

The link expires in 24 hours. If you didn't sign up, you can ignore this email.
`, name, link)

	return s.send(ctx, email, "Confirm your Pitts Bowling account", htmlBody, textBody)
}

// SendPasswordResetLink delivers the password-reset link.
func (s *AWSSESNotifier) SendPasswordResetLink(ctx context.Context, email, name, link string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1 style="background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px;">Reset your password</h1>
        <p>Hi %s,</p>
        <p>We received a request to reset your Pitts Bowling password:</p>
        <p><a href="%s" style="display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>The link expires in 15 minutes. If you didn't ask for this, you can ignore this email.</p>
        <p style="color: #666; font-size: 12px; border-top: 1px solid #eee; padding-top: 20px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>`, name, link, link)

	textBody := fmt.Sprintf(`Hi %s,

We received a request to reset your Pitts Bowling password:

%s

The link expires in 15 minutes. If you didn't ask for this, you can ignore this email.
`, name, link)

	return s.send(ctx, email, "Reset your Pitts Bowling password", htmlBody, textBody)
}

// SendReservationUpdate delivers a status-change notice for a reservation.
func (s *AWSSESNotifier) SendReservationUpdate(ctx context.Context, email, name, message string) error {
	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1 style="background-color: #f8f9fa; padding: 20px; text-align: center; border-radius: 4px;">Reservation update</h1>
        <p>Hi %s,</p>
        <p>%s</p>
        <p>You can review your reservations from your account dashboard.</p>
        <p style="color: #666; font-size: 12px; border-top: 1px solid #eee; padding-top: 20px;">This is an automated message. Please do not reply.</p>
    </div>
</body>
</html>`, name, message)

	textBody := fmt.Sprintf(`Hi %s,

%s

You can review your reservations from your account dashboard.
`, name, message)

	return s.send(ctx, email, "Your Pitts Bowling reservation", htmlBody, textBody)
}

func (s *AWSSESNotifier) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", logger.SanitizedEmail(email)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", logger.SanitizedEmail(email)),
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}
