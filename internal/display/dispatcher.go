package display

import (
	"os"

	"statusdeck/internal/check"

	"go.uber.org/zap"
)

// Font sizes used for center labels.
const (
	TextFontSize  = 14
	LabelFontSize = 16
)

// Surface is the button a dispatcher renders onto. Implementations are
// provided by the host integration.
type Surface interface {
	SetBackgroundColor(color RGBA) error
	SetCenterLabel(text string, color RGBA, fontSize int) error
	// SetMedia shows the image at path; an empty path clears it.
	SetMedia(path string) error
}

// Options controls how results are rendered.
type Options struct {
	ReturnType ReturnType
	// TextSuffix is appended to the check output in text mode.
	TextSuffix string
}

// Dispatcher renders classified results onto a Surface.
type Dispatcher struct {
	surface Surface
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher for one surface.
func NewDispatcher(surface Surface, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		surface: surface,
		logger:  logger.Named("display"),
	}
}

// Dispatch renders a result according to opts.ReturnType:
//   - ReturnBackground paints the style's background and also sets the
//     style's static label as the center label (LabelFontSize)
//   - ReturnText sets the output plus suffix as the center label
//     (TextFontSize) and leaves the background alone
//   - ReturnImage shows the style's image, or clears it when the file is
//     missing, and touches nothing else
//
// Surface errors are logged and otherwise ignored.
func (d *Dispatcher) Dispatch(isMatch bool, result check.Result, styles Styles, opts Options) {
	style := sanitize(styles.For(isMatch))

	switch opts.ReturnType {
	case ReturnText:
		d.report("set center label", d.surface.SetCenterLabel(result.Output+opts.TextSuffix, style.TextColor, TextFontSize))

	case ReturnBackground:
		d.report("set background color", d.surface.SetBackgroundColor(style.Background))
		d.report("set center label", d.surface.SetCenterLabel(style.Label, style.TextColor, LabelFontSize))

	case ReturnImage:
		path := ""
		if style.ImagePath != "" {
			if _, err := os.Stat(style.ImagePath); err == nil {
				path = style.ImagePath
			} else {
				d.logger.Debug("Image not found, clearing media",
					zap.String("path", style.ImagePath),
					zap.Error(err))
			}
		}
		d.report("set media", d.surface.SetMedia(path))

	default:
		d.logger.Warn("Unknown return type, nothing rendered",
			zap.Stringer("return_type", opts.ReturnType))
	}
}

func (d *Dispatcher) report(op string, err error) {
	if err != nil {
		d.logger.Warn("Surface update failed", zap.String("op", op), zap.Error(err))
	}
}

// sanitize replaces out-of-range colors with the black/white fallback.
func sanitize(s Style) Style {
	if !s.Background.Valid() {
		s.Background = Black
	}
	if !s.TextColor.Valid() {
		s.TextColor = White
	}
	return s
}
