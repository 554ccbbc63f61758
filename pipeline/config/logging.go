package config

import (
	"cmp"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const backupTimeFormat = "2006-01-02T15-04-05.000"

// rotatingFile is a log file that is renamed aside once it grows past
// maxBytes. Backups beyond maxBackups or older than maxAge are pruned on
// every rotation. A full run can log for hours, so size is checked on each
// write rather than only at startup.
type rotatingFile struct {
	path       string
	maxBytes   int64
	maxBackups int
	maxAge     time.Duration

	mu   sync.Mutex
	file *os.File
	size int64
}

func newRotatingFile(cfg *LogConfig) (*rotatingFile, error) {
	rf := &rotatingFile{
		path:       cfg.FilePath,
		maxBytes:   int64(cfg.MaxSize) * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
		maxAge:     time.Duration(cfg.MaxAge) * 24 * time.Hour,
	}
	if err := os.MkdirAll(filepath.Dir(rf.path), 0755); err != nil {
		return nil, errors.New(ErrLogDirectoryCreationFailed, "failed to create log directory", err).
			AddContext("path", rf.path)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if cfg.Cleanup {
		flags |= os.O_TRUNC
	}
	if err := rf.open(flags); err != nil {
		return nil, err
	}
	if rf.maxBytes > 0 && rf.size >= rf.maxBytes {
		if err := rf.rotate(); err != nil {
			rf.file.Close()
			return nil, err
		}
	}
	return rf, nil
}

func (rf *rotatingFile) open(flags int) error {
	f, err := os.OpenFile(rf.path, flags, 0644)
	if err != nil {
		return errors.New(ErrLogFileOpenFailed, "failed to open log file", err).AddContext("path", rf.path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.New(ErrLogFileStatFailed, "failed to stat log file", err).AddContext("path", rf.path)
	}
	rf.file = f
	rf.size = info.Size()
	return nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.maxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.maxBytes {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// rotate moves the current file aside and reopens an empty one
func (rf *rotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return errors.New(ErrLogRotationFailed, "failed to close log file", err)
	}
	backup := rf.path + "." + time.Now().Format(backupTimeFormat)
	if err := os.Rename(rf.path, backup); err != nil {
		return errors.New(ErrLogRotationFailed, "failed to rotate log file", err).AddContext("backup", backup)
	}
	if err := rf.open(os.O_CREATE | os.O_WRONLY | os.O_TRUNC); err != nil {
		return err
	}
	return rf.prune()
}

// prune removes the oldest backups past maxBackups and any past maxAge
func (rf *rotatingFile) prune() error {
	if rf.maxBackups <= 0 && rf.maxAge <= 0 {
		return nil
	}

	dir, base := filepath.Dir(rf.path), filepath.Base(rf.path)+"."
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.New(ErrLogBackupReadFailed, "failed to read log directory", err)
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var backups []backup
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	// newest first
	slices.SortFunc(backups, func(a, b backup) int { return b.modTime.Compare(a.modTime) })

	cutoff := time.Now().Add(-rf.maxAge)
	for i, b := range backups {
		expired := rf.maxAge > 0 && b.modTime.Before(cutoff)
		surplus := rf.maxBackups > 0 && i >= rf.maxBackups
		if !expired && !surplus {
			continue
		}
		if err := os.Remove(b.path); err != nil {
			return errors.New(ErrLogBackupRemoveFailed, "failed to remove old log backup", err).
				AddContext("backup", b.path)
		}
	}
	return nil
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.file.Close()
}

// SetupLogger creates the process logger from the log configuration.
// Console output goes to stderr so command output on stdout stays clean.
func SetupLogger(cfg *Config) (zerolog.Logger, error) {
	return newLogger(cfg, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

func newLogger(cfg *Config, console io.Writer, tty bool) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cmp.Or(cfg.Log.Level, "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writers []io.Writer
	if cfg.Log.Console {
		switch {
		case cfg.Log.Format == "console", cfg.Log.Format == "auto" && tty:
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        console,
				TimeFormat: time.RFC3339,
				NoColor:    !tty,
			})
		default:
			writers = append(writers, console)
		}
	}
	if cfg.Log.FilePath != "" {
		rf, err := newRotatingFile(&cfg.Log)
		if err != nil {
			return zerolog.Logger{}, errors.New(ErrLogFileWriterSetupFailed, "failed to setup log file", err)
		}
		writers = append(writers, rf)
	}

	out := io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(out).With().
		Timestamp().
		Str("component", "cnpj").
		Logger(), nil
}
