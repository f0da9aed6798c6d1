package display

import (
	"sync"

	"go.uber.org/zap"
)

// LogSurface renders button updates as log lines. It backs headless mode.
type LogSurface struct {
	name   string
	logger *zap.Logger
}

// NewLogSurface creates a surface that logs updates for the named button.
func NewLogSurface(name string, logger *zap.Logger) *LogSurface {
	return &LogSurface{name: name, logger: logger.Named("surface")}
}

func (s *LogSurface) SetBackgroundColor(color RGBA) error {
	s.logger.Info("Background",
		zap.String("button", s.name),
		zap.Ints("rgba", color[:]))
	return nil
}

func (s *LogSurface) SetCenterLabel(text string, color RGBA, fontSize int) error {
	s.logger.Info("Label",
		zap.String("button", s.name),
		zap.String("text", text),
		zap.Ints("rgba", color[:]),
		zap.Int("font_size", fontSize))
	return nil
}

func (s *LogSurface) SetMedia(path string) error {
	s.logger.Info("Media",
		zap.String("button", s.name),
		zap.String("path", path))
	return nil
}

// SurfaceCall records one update made on a RecordingSurface.
type SurfaceCall struct {
	Op       string
	Color    RGBA
	Text     string
	FontSize int
	Path     string
}

// RecordingSurface keeps every update in memory for testing
type RecordingSurface struct {
	mu    sync.Mutex
	calls []SurfaceCall
}

// NewRecordingSurface creates an empty recording surface
func NewRecordingSurface() *RecordingSurface {
	return &RecordingSurface{}
}

func (s *RecordingSurface) SetBackgroundColor(color RGBA) error {
	s.record(SurfaceCall{Op: "background", Color: color})
	return nil
}

func (s *RecordingSurface) SetCenterLabel(text string, color RGBA, fontSize int) error {
	s.record(SurfaceCall{Op: "label", Text: text, Color: color, FontSize: fontSize})
	return nil
}

func (s *RecordingSurface) SetMedia(path string) error {
	s.record(SurfaceCall{Op: "media", Path: path})
	return nil
}

func (s *RecordingSurface) record(call SurfaceCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// Calls returns a copy of the recorded updates
func (s *RecordingSurface) Calls() []SurfaceCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SurfaceCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Reset forgets all recorded updates
func (s *RecordingSurface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
