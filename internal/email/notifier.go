package email

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/polkassembly/governance/internal/auth"
	"github.com/polkassembly/governance/internal/i18n"
)

var sentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_emails_total",
	Help: "Transactional emails by template and outcome.",
}, []string{"template", "outcome"})

func init() {
	prometheus.MustRegister(sentTotal)
}

// Notifier renders localized mails and hands them to a Mailer. Delivery
// problems are logged, never returned.
type Notifier struct {
	Mailer      Mailer
	DomainURL   string
	ReportEmail string
	Logger      *slog.Logger
}

var _ auth.Notifier = (*Notifier)(nil)

func (n *Notifier) SendVerification(ctx context.Context, u *auth.User, token string) {
	if u.Email == "" {
		return
	}
	link := n.DomainURL + "/verify-email/" + url.PathEscape(token)
	content := i18n.VerificationEmail(i18n.LocaleFromContext(ctx), u.Username, link, int(auth.EmailVerificationTTL/time.Hour))
	n.deliver(ctx, "verification", u.Email, content)
}

func (n *Notifier) SendPasswordReset(ctx context.Context, u *auth.User, token string) {
	if u.Email == "" {
		return
	}
	q := url.Values{}
	q.Set("token", token)
	q.Set("userId", strconv.Itoa(u.ID))
	link := n.DomainURL + "/reset-password?" + q.Encode()
	content := i18n.PasswordResetEmail(i18n.LocaleFromContext(ctx), u.Username, link, int(auth.PasswordResetTTL/time.Hour))
	n.deliver(ctx, "password_reset", u.Email, content)
}

// SendUndoEmailChange is addressed to the previous email.
func (n *Notifier) SendUndoEmailChange(ctx context.Context, u *auth.User, oldEmail, token string) {
	if oldEmail == "" {
		return
	}
	link := n.DomainURL + "/undo-email-change/" + url.PathEscape(token)
	content := i18n.UndoEmailChangeEmail(i18n.LocaleFromContext(ctx), u.Username, oldEmail, u.Email, link)
	n.deliver(ctx, "undo_email_change", oldEmail, content)
}

func (n *Notifier) SendContentReport(ctx context.Context, r auth.ContentReport, reporter *auth.User) {
	if n.ReportEmail == "" {
		n.logger().Warn("content report email not sent, no report address configured", "content_id", r.ContentID)
		return
	}
	content := i18n.ContentReportEmail(i18n.DefaultLocale, reporter.Username, string(r.Network), r.Type, r.ContentID, r.Reason, r.Comments)
	n.deliver(ctx, "content_report", n.ReportEmail, content)
}

func (n *Notifier) deliver(ctx context.Context, template, to string, content i18n.EmailContent) {
	if n.Mailer == nil {
		sentTotal.WithLabelValues(template, "disabled").Inc()
		n.logger().Warn("email not sent, mailer missing", "template", template)
		return
	}
	err := n.Mailer.Send(ctx, to, content.Subject, content.Text, content.HTML)
	switch {
	case errors.Is(err, ErrDisabled):
		sentTotal.WithLabelValues(template, "disabled").Inc()
		n.logger().Warn("email not sent, smtp not configured", "template", template)
	case err != nil:
		sentTotal.WithLabelValues(template, "failed").Inc()
		n.logger().Error("email not sent", "template", template, "error", err)
	default:
		sentTotal.WithLabelValues(template, "sent").Inc()
	}
}

func (n *Notifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}
