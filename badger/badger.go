// Package badger provides a ragchat.VectorStore on an embedded BadgerDB
// key-value store.
package badger

import (
	"go.uber.org/zap"
)

// logger adapts zap to badger.Logger.
type logger struct {
	*zap.SugaredLogger
}

func (l logger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
