// Package sink persists assembled crawl artifacts.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileSystemSink writes artifacts under a root directory on local disk.
type FileSystemSink struct {
	root   string
	logger *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir, creating it if needed.
func NewFileSystemSink(root string, logger *zap.Logger) (*FileSystemSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{root: root, logger: logger}, nil
}

// Write stores the artifact under the sink root and returns the full path.
func (s *FileSystemSink) Write(ctx context.Context, filename string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("empty artifact content")
	}
	target := filepath.Join(s.root, filepath.Clean(filename))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("creating artifact dir for %s: %w", target, err)
	}
	if err := os.WriteFile(target, content, 0o600); err != nil {
		return "", fmt.Errorf("writing artifact to %s: %w", target, err)
	}
	s.logger.Debug("artifact written",
		zap.String("path", target),
		zap.Int("bytes", len(content)),
	)
	return target, nil
}
