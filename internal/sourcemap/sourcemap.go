// Package sourcemap rewrites diagnostics of transpiled Lua chunks so that
// frames point at the original sources.
package sourcemap

import (
	"fmt"
	"os"
	"strings"
	"sync"

	gosourcemap "github.com/go-sourcemap/sourcemap"
)

// Mapper holds the source maps of loaded chunks, keyed by chunk name.
type Mapper struct {
	mu        sync.RWMutex
	consumers map[string]*gosourcemap.Consumer
}

// NewMapper creates an empty mapper.
func NewMapper() *Mapper {
	return &Mapper{consumers: make(map[string]*gosourcemap.Consumer)}
}

// Add registers the source map data for chunk.
func (m *Mapper) Add(chunk string, data []byte) error {
	consumer, err := gosourcemap.Parse(chunk, data)
	if err != nil {
		return fmt.Errorf("failed to parse source map for %s: %w", chunk, err)
	}

	m.mu.Lock()
	m.consumers[chunk] = consumer
	m.mu.Unlock()
	return nil
}

// AddFile registers the source map at path for chunk.
func (m *Mapper) AddFile(chunk, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read source map: %w", err)
	}
	return m.Add(chunk, data)
}

// Len returns the number of registered maps.
func (m *Mapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.consumers)
}

// Map rewrites every frame of trace whose chunk has a source map, along
// with the position prefix of the message on its first line. Other lines
// are returned unchanged.
func (m *Mapper) Map(trace string) string {
	if m == nil || m.Len() == 0 {
		return trace
	}

	lines := strings.Split(trace, "\n")
	for i, line := range lines {
		if frame := parseFrameLine(line); frame != nil {
			lines[i] = formatFrame(m.mapFrame(*frame))
			continue
		}
		if i == 0 {
			if msg := parseMessageLine(line); msg != nil {
				lines[i] = formatMessage(m.mapFrame(*msg))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// mapFrame maps a single frame to its original position
func (m *Mapper) mapFrame(frame traceFrame) mappedFrame {
	m.mu.RLock()
	consumer := m.consumers[frame.Source]
	m.mu.RUnlock()

	// Native frames and chunks without a map stay as they are
	if consumer == nil || frame.Line <= 0 {
		return mappedFrame{traceFrame: frame}
	}

	// Lua frames carry no column; take the mapping that starts the line
	file, name, line, _, ok := consumer.Source(frame.Line, 0)
	if !ok || file == "" || line <= 0 {
		return mappedFrame{traceFrame: frame}
	}

	return mappedFrame{
		traceFrame:     frame,
		OriginalSource: file,
		OriginalLine:   line,
		OriginalName:   name,
		Mapped:         true,
	}
}
