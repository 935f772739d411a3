package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type SMTPSettings struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSink renders an order summary and sends it over SMTP to the order
// owner. Placed orders are also copied to the admin recipients.
type EmailSink struct {
	settings SMTPSettings
	admins   []string
	auth     smtp.Auth
	sendMail sendMailFunc
}

func NewEmailSink(settings SMTPSettings, admins []string) *EmailSink {
	var auth smtp.Auth
	if settings.User != "" {
		auth = smtp.PlainAuth("", settings.User, settings.Password, settings.Host)
	}
	if settings.From == "" {
		settings.From = settings.User
	}

	return &EmailSink{
		settings: settings,
		admins:   admins,
		auth:     auth,
		sendMail: sendMailContext,
	}
}

func (s *EmailSink) Name() string {
	return "email"
}

func (s *EmailSink) Send(ctx context.Context, event Event) error {
	addr := fmt.Sprintf("%s:%s", s.settings.Host, s.settings.Port)

	if event.Recipient.Email != "" {
		subject, body := renderCustomerEmail(event)
		if err := s.deliver(ctx, addr, []string{event.Recipient.Email}, subject, body); err != nil {
			return err
		}
	}

	if event.Type == EventOrderPlaced && len(s.admins) > 0 {
		subject, body := renderAdminEmail(event)
		if err := s.deliver(ctx, addr, s.admins, subject, body); err != nil {
			return err
		}
	}

	return nil
}

func (s *EmailSink) deliver(ctx context.Context, addr string, to []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.settings.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	if err := s.sendMail(ctx, addr, s.auth, s.settings.From, to, []byte(msg.String())); err != nil {
		return fmt.Errorf("email: failed to send mail: %w", err)
	}

	log.Info().Strs("to", to).Str("subject", subject).Msg("email: sent")
	return nil
}

// sendMailContext is smtp.SendMail bound to ctx: the connection deadline
// follows the ctx deadline and cancellation closes the connection.
func sendMailContext(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) (err error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return withContextErr(ctx, err)
	}
	defer c.Close()
	defer func() { err = withContextErr(ctx, err) }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Quit()
}

// withContextErr reports the ctx error when an I/O failure was caused by the
// deadline or cancellation.
func withContextErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	// The connection deadline can fire just before the ctx timer does.
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

func renderCustomerEmail(e Event) (string, string) {
	ref := e.ShortOrderID()
	greeting := "Hello"
	if e.Recipient.Name != "" {
		greeting = "Hello " + e.Recipient.Name
	}

	switch e.Type {
	case EventOrderDelivered:
		return "Your order has been delivered",
			fmt.Sprintf("%s,\n\nOrder #%s has been delivered. Thank you for shopping with us.\n", greeting, ref)
	case EventOrderCancelled:
		return "Order cancelled",
			fmt.Sprintf("%s,\n\nOrder #%s has been cancelled.\n\n%s", greeting, ref, renderItems(e))
	default:
		return "Order confirmation",
			fmt.Sprintf("%s,\n\nThank you for your order #%s.\n\n%s", greeting, ref, renderItems(e))
	}
}

func renderAdminEmail(e Event) (string, string) {
	return fmt.Sprintf("New order #%s", e.ShortOrderID()),
		fmt.Sprintf("Customer: %s <%s>\nOrder: %s\n\n%s", e.Recipient.Name, e.Recipient.Email, e.OrderID, renderItems(e))
}

func renderItems(e Event) string {
	var b strings.Builder
	for _, item := range e.Items {
		fmt.Fprintf(&b, "- %s x%d @ %s\n", item.Name, item.Quantity, item.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", e.Amount.StringFixed(2))
	return b.String()
}
