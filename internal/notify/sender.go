// Package notify delivers out-of-band operator alerts over SMTP. It is a
// thin go-mail wrapper; in-band feedback stays in the HTTP responses and
// structured logs.
package notify

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"crm_intake_backend/platform/config"
	"crm_intake_backend/platform/logger"
)

// Sender sends operator alert emails.
type Sender interface {
	BridgeFailure(ctx context.Context, cause error)
}

// NoopSender discards alerts. Used when alert email is not configured.
type NoopSender struct{}

func (NoopSender) BridgeFailure(ctx context.Context, cause error) {}

// SMTPSender delivers alerts via a direct SMTP connection.
type SMTPSender struct {
	cfg config.AlertEmailConfig
	log *logger.Logger
}

// NewSender returns an SMTP sender when alert email is enabled, a noop
// sender otherwise.
func NewSender(cfg config.AlertEmailConfig, log *logger.Logger) Sender {
	if !cfg.GetAlertEmailEnabled() {
		log.Info("alert email disabled, operator alerts will only be logged")
		return NoopSender{}
	}
	return &SMTPSender{cfg: cfg, log: log}
}

// BridgeFailure notifies the operator that the lead intake bridge is
// degraded. Failures to send are logged and swallowed; the alert itself is
// best-effort.
func (s *SMTPSender) BridgeFailure(ctx context.Context, cause error) {
	body := fmt.Sprintf(
		"The lead intake bridge hit an error and may be behind on call events.\n\n"+
			"First error this session: %v\n\n"+
			"Further errors are suppressed until the service restarts; check the logs for details.",
		cause,
	)
	if err := s.send(ctx, "Lead intake bridge degraded", body); err != nil {
		s.log.Error("failed to send bridge alert email", "error", err)
	}
}

func (s *SMTPSender) send(ctx context.Context, subject, textContent string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.GetAlertFromAddress()); err != nil {
		return fmt.Errorf("alert from: %w", err)
	}
	if err := msg.To(s.cfg.GetAlertToAddress()); err != nil {
		return fmt.Errorf("alert to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, textContent)

	client, err := gomail.NewClient(s.cfg.GetSMTPHost(),
		gomail.WithPort(s.cfg.GetSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.GetSMTPUsername()),
		gomail.WithPassword(s.cfg.GetSMTPPassword()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("alert smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("alert smtp send: %w", err)
	}
	return nil
}
