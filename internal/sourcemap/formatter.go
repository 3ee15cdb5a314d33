package sourcemap

import (
	"fmt"
	"strings"
)

// formatFrame renders a frame in the diagnostic layout, substituting the
// original position when the frame was mapped.
func formatFrame(frame mappedFrame) string {
	if !frame.Mapped {
		return frame.Raw
	}

	name := frame.FunctionName
	if name == "unknown" && frame.OriginalName != "" {
		name = frame.OriginalName
	}

	return fmt.Sprintf("%s%d. %s - %s:%d", frame.Indent, frame.Level, name, frame.OriginalSource, frame.OriginalLine)
}

// formatMessage renders an error message with its position prefix replaced
// by the original one.
func formatMessage(frame mappedFrame) string {
	if !frame.Mapped {
		return frame.Raw
	}

	rest := strings.TrimPrefix(frame.Raw, fmt.Sprintf("%s:%d:", frame.Source, frame.Line))
	return fmt.Sprintf("%s:%d:%s", frame.OriginalSource, frame.OriginalLine, rest)
}
