// Package mail defines the email-delivery collaborator, explicitly out
// of scope per spec.md §1 ("email delivery"). Only a thin interface plus
// a logging no-op implementation are carried.
package mail

import "github.com/obyte-wallet/walletd/internal/walletlog"

// Sender delivers a transactional email.
type Sender interface {
	Send(to, subject, body string) error
}

// NopSender logs and discards; the real delivery mechanism (SMTP,
// SES, …) is out of scope.
type NopSender struct{}

// New constructs the no-op mail sender.
func New() *NopSender { return &NopSender{} }

func (s *NopSender) Send(to, subject, body string) error {
	walletlog.L().WithField("to", to).WithField("subject", subject).Debug("mail: delivery skipped (out of scope)")
	return nil
}
