package mapshine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ShaderWatcher live-reloads shader overrides from a directory of .kage
// files. A file named <shader>.kage overrides the registry entry with the
// same name (fog.kage, lighting.kage, ...); deleting the file restores the
// built-in source. Rejected sources fall back automatically, so a typo
// mid-edit never blanks the screen.
//
// Filesystem events arrive on the watcher's goroutine; Poll drains them on
// the frame loop, keeping shader mutation single-threaded like everything
// else in the core.
type ShaderWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
}

// NewShaderWatcher starts watching dir and installs overrides for any
// .kage files already present.
func NewShaderWatcher(dir string) (*ShaderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader watch: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("shader watch %s: %w", dir, err)
	}

	sw := &ShaderWatcher{dir: dir, watcher: w}

	entries, err := os.ReadDir(dir)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("shader watch %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			sw.applyFile(filepath.Join(dir, entry.Name()))
		}
	}

	return sw, nil
}

// Poll drains pending filesystem events and applies override changes.
// Called once per frame; returns immediately when nothing happened.
func (sw *ShaderWatcher) Poll() {
	for {
		select {
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				sw.applyFile(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if name, ok := shaderNameForFile(ev.Name); ok {
					ClearShaderOverride(name)
					_, _ = fmt.Fprintf(os.Stderr, "[mapshine] shader %q restored to built-in\n", name)
				}
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] shader watch: %v\n", err)
		default:
			return
		}
	}
}

// Close stops watching. Installed overrides stay active.
func (sw *ShaderWatcher) Close() error {
	return sw.watcher.Close()
}

func (sw *ShaderWatcher) applyFile(path string) {
	name, ok := shaderNameForFile(path)
	if !ok {
		return
	}
	src, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] shader watch: read %s: %v\n", path, err)
		return
	}
	OverrideShaderSource(name, string(src))
	_, _ = fmt.Fprintf(os.Stderr, "[mapshine] shader %q overridden from %s\n", name, path)
}

// shaderNameForFile maps a watched path to a shader registry name.
// Returns false for files that are not .kage or name no known shader.
func shaderNameForFile(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".kage") {
		return "", false
	}
	name := strings.TrimSuffix(base, ".kage")
	if _, ok := builtinShaderSources[name]; !ok {
		return "", false
	}
	return name, true
}
