package authprovider

import (
	"context"
	"net/url"

	"github.com/tomaskub292929/to-korea-sub000/pkg/auth/session"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// Link modes understood by the action page, in the form clients already
// parse.
const (
	modeVerifyEmail   = "verifyEmail"
	modeResetPassword = "resetPassword"
)

// Mailer delivers the links behind email verification and password reset.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, link string) error
	SendPasswordResetEmail(ctx context.Context, to, link string) error
}

// LogMailer records links in the log instead of sending mail. The link itself
// is only written at debug level.
type LogMailer struct {
	logg *logger.Logger
}

func NewLogMailer(logg *logger.Logger) *LogMailer {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogMailer{logg: logg}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, link string) error {
	m.deliver(ctx, session.PurposeVerifyEmail, to, link)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, to, link string) error {
	m.deliver(ctx, session.PurposeResetPassword, to, link)
	return nil
}

func (m *LogMailer) deliver(ctx context.Context, purpose session.ActionPurpose, to, link string) {
	ctx = m.logg.WithFields(ctx, map[string]any{"purpose": string(purpose), "to": to})
	m.logg.Info(ctx, "email action link issued")
	m.logg.Debug(m.logg.WithField(ctx, "link", link), "email action link")
}

// actionLink appends mode and oobCode to base, keeping any query it has.
func actionLink(base, mode, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?mode=" + url.QueryEscape(mode) + "&oobCode=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("mode", mode)
	q.Set("oobCode", token)
	u.RawQuery = q.Encode()
	return u.String()
}
