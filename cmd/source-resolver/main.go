package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

var version = "dev"

// setupLogger logs to w only. Standard output is reserved for the result of
// a command.
func setupLogger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	log.SetLevel(logrus.WarnLevel)
	return log
}

func main() {
	log := setupLogger(os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(&app{log: log, out: os.Stdout}).ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Errorf("ERROR: %v", err)
		os.Exit(1)
	}
}
