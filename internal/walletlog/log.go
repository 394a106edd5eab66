// Package walletlog holds the service-wide logger, following the
// teacher's core/wallet.go SetWalletLogger/globalLogger pattern.
package walletlog

import "github.com/sirupsen/logrus"

var logger = logrus.New()

// SetLogger overrides the package-level logger (tests, alternate formats).
func SetLogger(l *logrus.Logger) { logger = l }

// L returns the current logger.
func L() *logrus.Logger { return logger }
