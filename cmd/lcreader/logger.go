package main

import "go.uber.org/zap"

var readerLog = zap.NewNop()
var cmdLog = zap.NewNop()

func enableDebugLogging(l *zap.Logger) {
	readerLog = l.Named("reader")
	cmdLog = l
}
