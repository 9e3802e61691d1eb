package utils

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"go-storefront/models"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// Transport delivers a single rendered email.
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EmailService renders the storefront emails and hands them to a Transport.
type EmailService struct {
	transport   Transport
	frontendURL string
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService(transport Transport, frontendURL string) *EmailService {
	return &EmailService{transport: transport, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// NewTransport picks the mail provider by name.
func NewTransport(provider, apiKey, sender string) (Transport, error) {
	switch strings.ToLower(provider) {
	case "sendgrid":
		if apiKey == "" {
			return nil, fmt.Errorf("sendgrid: api key is not set")
		}
		return &SendgridTransport{client: sendgrid.NewSendClient(apiKey), from: sender}, nil
	case "postmark":
		if apiKey == "" {
			return nil, fmt.Errorf("postmark: api token is not set")
		}
		return &PostmarkTransport{client: postmark.NewClient(apiKey, ""), from: sender}, nil
	case "", "log":
		return LogTransport{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", provider)
	}
}

// SendgridTransport sends through the SendGrid v3 API.
type SendgridTransport struct {
	client *sendgrid.Client
	from   string
}

func (t *SendgridTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewSingleEmail(mail.NewEmail("", t.from), subject, mail.NewEmail("", to), "", htmlBody)
	resp, err := t.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("failed to send email: sendgrid status %d", resp.StatusCode)
	}
	return nil
}

// PostmarkTransport sends through Postmark.
type PostmarkTransport struct {
	client *postmark.Client
	from   string
}

func (t *PostmarkTransport) Send(_ context.Context, to, subject, htmlBody string) error {
	_, err := t.client.SendEmail(postmark.Email{
		From:     t.from,
		To:       to,
		Subject:  subject,
		HtmlBody: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogTransport only logs; used in development.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, to, subject, htmlBody string) error {
	logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email not sent, log transport")
	logrus.Debug(htmlBody)
	return nil
}

var emailTemplates = template.Must(template.New("emails").Parse(`
{{define "verification"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto">
<h1 style="color: #4CAF50">Welcome to SastoBazaar!</h1>
<p>Thank you for registering with us! To complete your registration, please use the verification code below:</p>
<p style="font-size: 24px; font-weight: bold; color: #4CAF50">{{.Code}}</p>
<p>This code is valid for {{.Minutes}} minutes. If you did not register for an account, please ignore this email.</p>
</div>{{end}}
{{define "reset"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto">
<h1>Reset your password</h1>
<p>Click the link below to choose a new password. The link expires in {{.Minutes}} minutes.</p>
<p><a href="{{.Link}}">Reset password</a></p>
</div>{{end}}
{{define "delivered"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto">
<h1>Your order has been delivered</h1>
<p>Order <strong>{{.ID}}</strong> was delivered to {{.Address}}.</p>
<ul>{{range .Items}}<li>{{.Name}} x {{.Qty}}</li>{{end}}</ul>
<p>Total: <strong>${{printf "%.2f" .Total}}</strong></p>
<p>Thank you for shopping with us!</p>
</div>{{end}}
`))

func (es *EmailService) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

// SendVerificationEmail sends the one-time registration code
func (es *EmailService) SendVerificationEmail(ctx context.Context, toEmail, code string) error {
	body, err := es.render("verification", map[string]interface{}{
		"Code":    code,
		"Minutes": int(models.VerificationCodeTTL.Minutes()),
	})
	if err != nil {
		return err
	}
	return es.transport.Send(ctx, toEmail, "Your Verification Code from SastoBazaar", body)
}

// ResetLink builds the frontend link carrying a reset token.
func (es *EmailService) ResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", es.frontendURL, token)
}

// SendResetPasswordEmail sends the password reset link
func (es *EmailService) SendResetPasswordEmail(ctx context.Context, toEmail, link string) error {
	body, err := es.render("reset", map[string]interface{}{
		"Link":    link,
		"Minutes": int(models.ResetTokenTTL.Minutes()),
	})
	if err != nil {
		return err
	}
	return es.transport.Send(ctx, toEmail, "Reset your SastoBazaar password", body)
}

// SendOrderDeliveredEmail tells the owner their order arrived
func (es *EmailService) SendOrderDeliveredEmail(ctx context.Context, toEmail string, order *models.Order) error {
	addr := order.ShippingAddress
	body, err := es.render("delivered", map[string]interface{}{
		"ID":      order.ID.Hex(),
		"Address": fmt.Sprintf("%s, %s %s, %s", addr.Address, addr.City, addr.PostalCode, addr.Country),
		"Items":   order.OrderItems,
		"Total":   order.TotalPrice,
	})
	if err != nil {
		return err
	}
	return es.transport.Send(ctx, toEmail, "Your order has been delivered", body)
}
