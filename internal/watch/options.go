package watch

import "path/filepath"

// Options configures the file watcher behavior.
type Options struct {
	// IgnorePatterns are filepath.Match patterns checked against the base
	// name of each path. Empty by default: every path under the root is
	// reported.
	IgnorePatterns []string
}

// shouldIgnore checks if a path matches an ignore pattern.
func (o *Options) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}
	return false
}
