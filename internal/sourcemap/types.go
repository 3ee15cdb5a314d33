package sourcemap

// traceFrame is one frame line parsed from a diagnostic.
type traceFrame struct {
	// The raw line, without its leading newline
	Raw string
	// Leading whitespace, preserved when the line is re-rendered
	Indent string
	// Level number as printed (1-based)
	Level int
	// Function name, "unknown" when the runtime had none
	FunctionName string
	// Chunk name the frame executes in
	Source string
	// Current line, -1 for native frames
	Line int
}

// mappedFrame is a frame with its original source position, if known.
type mappedFrame struct {
	traceFrame
	// Original source file (from the source map)
	OriginalSource string
	// Original line (1-indexed)
	OriginalLine int
	// Original symbol name, when the map records one
	OriginalName string
	// Whether mapping was successful
	Mapped bool
}
