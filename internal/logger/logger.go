package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the process-wide logger. An empty path or "console"
// keeps output on stdout; anything else is a rotated log file.
func Init(level string, path string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path != "" && path != "console" {
		out = &lumberjack.Logger{
			Filename:   filepath.ToSlash(path),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
	}

	log.SetOutput(out)
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(lvl)

	log.Info("logger initialized")
	return nil
}

func Debug(msg string, fields map[string]any) {
	log.WithFields(fields).Debug(msg)
}

func Info(msg string, fields map[string]any) {
	log.WithFields(fields).Info(msg)
}

func Warn(msg string, fields map[string]any) {
	log.WithFields(fields).Warn(msg)
}

func Error(msg string, fields map[string]any) {
	log.WithFields(fields).Error(msg)
}

// Fatal logs and exits the process with status 1.
func Fatal(msg string, fields map[string]any) {
	log.WithFields(fields).Fatal(msg)
}

// Fingerprint identifies a secret in log lines by the length and a short
// SHA-256 prefix. No characters of the secret itself are written.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return "sha256:" + hex.EncodeToString(sum[:4]) + "(" + strconv.Itoa(len(secret)) + ")"
}
