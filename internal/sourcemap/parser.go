package sourcemap

import (
	"regexp"
	"strconv"
)

// frameLine matches "<indent>N. name - source:line" as written by
// hook.Traceback.
var frameLine = regexp.MustCompile(`^(\s+)(\d+)\. (.*) - (.+):(-?\d+)$`)

// messageLine matches the "source:line: " prefix the runtime puts on an
// error message.
var messageLine = regexp.MustCompile(`^([^\s:][^:]*(?::[^\d:][^:]*)*):(\d+):( .*)?$`)

// parseFrameLine parses a single diagnostic line, or returns nil when the
// line is not a frame (e.g. the error message).
func parseFrameLine(line string) *traceFrame {
	m := frameLine.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	level, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	lineNum, err := strconv.Atoi(m[5])
	if err != nil {
		return nil
	}

	return &traceFrame{
		Raw:          line,
		Indent:       m[1],
		Level:        level,
		FunctionName: m[3],
		Source:       m[4],
		Line:         lineNum,
	}
}

// parseMessageLine splits the position prefix off an error message, or
// returns nil when the message carries none.
func parseMessageLine(line string) *traceFrame {
	m := messageLine.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	lineNum, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}

	return &traceFrame{Raw: line, Source: m[1], Line: lineNum}
}
