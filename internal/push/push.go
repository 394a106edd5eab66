// Package push defines the push-notification delivery collaborator,
// explicitly out of scope per spec.md §1 ("push-notification delivery").
// Only a thin interface plus a logging no-op implementation are carried,
// so the HTTP surface naming it (spec.md §6) has something to call.
package push

import "github.com/obyte-wallet/walletd/internal/walletlog"

// Notifier delivers a push payload to a subscribed device token.
type Notifier interface {
	Push(token, title, body string) error
}

// NopNotifier logs and discards; the real delivery mechanism (APNs,
// FCM, …) is out of scope.
type NopNotifier struct{}

// New constructs the no-op push notifier.
func New() *NopNotifier { return &NopNotifier{} }

func (n *NopNotifier) Push(token, title, body string) error {
	walletlog.L().WithField("token", token).WithField("title", title).Debug("push: delivery skipped (out of scope)")
	return nil
}
