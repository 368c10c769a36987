package detector

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ErrEmptySet is returned when a signature file lists no signatures.
var ErrEmptySet = errors.New("signature set is empty")

// Load reads a signature file (YAML, JSON or TOML) of the form:
//
//	version: "2024-06"
//	signatures: [facebookexternalhit, WhatsApp]
func Load(path string) (SignatureSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return SignatureSet{}, fmt.Errorf("read signature file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (SignatureSet, error) {
	var set SignatureSet
	if err := v.Unmarshal(&set); err != nil {
		return SignatureSet{}, fmt.Errorf("decode signature file: %w", err)
	}
	set = set.normalized()
	if len(set.Signatures) == 0 {
		return SignatureSet{}, ErrEmptySet
	}
	return set, nil
}

// Watch loads path into d and keeps it in sync with later edits until the
// returned stop function is called. A reload that fails to parse keeps the
// previous set. The parent directory is watched so editors that replace the
// file by rename are picked up too.
func Watch(path string, d *Detector, logger *zap.Logger) (func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	set, err := Load(path)
	if err != nil {
		return nil, err
	}
	d.Replace(set)
	logger.Info("crawler signatures loaded",
		zap.String("path", path),
		zap.String("version", set.Version),
		zap.Int("count", len(set.Signatures)),
	)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create signature watcher: %w", err)
	}
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch signature directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reload(path, d, logger)
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("crawler signature watcher error", zap.Error(werr))
			}
		}
	}()

	var once sync.Once
	var closeErr error
	stop := func() error {
		once.Do(func() {
			closeErr = watcher.Close()
			<-done
		})
		return closeErr
	}
	return stop, nil
}

func reload(path string, d *Detector, logger *zap.Logger) {
	next, err := Load(path)
	if err != nil {
		logger.Warn("crawler signature reload rejected", zap.String("path", path), zap.Error(err))
		return
	}
	if next.Version == d.Version() && slices.Equal(next.Signatures, d.Signatures()) {
		return
	}
	d.Replace(next)
	logger.Info("crawler signatures reloaded",
		zap.String("version", next.Version),
		zap.Int("count", len(next.Signatures)),
	)
}
