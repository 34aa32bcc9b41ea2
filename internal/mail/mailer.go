package mail

import (
	"context"
	"fmt"

	"marketing-backend/internal/model"
)

type sender interface {
	Send(ctx context.Context, msg Message) (SendReceipt, error)
}

// Mailer composes rendered templates into the site's transactional emails.
type Mailer struct {
	sender   sender
	renderer *Renderer
	adminTo  string
	siteName string
}

func NewMailer(sender sender, renderer *Renderer, adminTo string, siteName string) *Mailer {
	return &Mailer{sender: sender, renderer: renderer, adminTo: adminTo, siteName: siteName}
}

func (m *Mailer) ContactAutoReply(ctx context.Context, contact model.ContactRequest) error {
	html, err := m.renderer.Render(TemplateContactAutoReply, map[string]any{
		"Name":    contact.Name,
		"Subject": contact.Subject,
		"Message": contact.Message,
	})
	if err != nil {
		return err
	}

	_, err = m.sender.Send(ctx, Message{
		To:      []string{contact.Email},
		Subject: fmt.Sprintf("We received your message - %s", m.siteName),
		HTML:    html,
	})
	return err
}

// ContactNotification alerts the site owner. It is a no-op without an admin address.
func (m *Mailer) ContactNotification(ctx context.Context, id string, contact model.ContactRequest) error {
	if m.adminTo == "" {
		return nil
	}

	html, err := m.renderer.Render(TemplateContactNotification, map[string]any{
		"ID":      id,
		"Name":    contact.Name,
		"Email":   contact.Email,
		"Phone":   contact.Phone,
		"Company": contact.Company,
		"Subject": contact.Subject,
		"Message": contact.Message,
	})
	if err != nil {
		return err
	}

	subject := "New contact form submission"
	if contact.Subject != "" {
		subject += ": " + contact.Subject
	}

	_, err = m.sender.Send(ctx, Message{
		To:      []string{m.adminTo},
		ReplyTo: contact.Email,
		Subject: subject,
		HTML:    html,
	})
	return err
}

func (m *Mailer) NewsletterWelcome(ctx context.Context, subscriber model.Subscriber) error {
	html, err := m.renderer.Render(TemplateNewsletterWelcome, map[string]any{
		"Name": subscriber.Name,
	})
	if err != nil {
		return err
	}

	_, err = m.sender.Send(ctx, Message{
		To:      []string{subscriber.Email},
		Subject: fmt.Sprintf("Welcome to the %s newsletter", m.siteName),
		HTML:    html,
	})
	return err
}
