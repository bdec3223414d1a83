package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the standard logger. With a non-empty file, output is also
// written to a size-rotated log file; the returned closer flushes it.
func Init(file string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if file == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}
	w := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    32, // MB
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, w))
	return w
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
