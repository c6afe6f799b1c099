package cli

import (
	"bufio"
	"context"
	"strings"
	"sync"
)

// batchTerminator ends a multi-line /batch block.
const batchTerminator = "."

// lineReader reads REPL input. A line ending in a backslash continues the
// message on the next line, the terminal analogue of Shift+Enter.
//
// Lines are scanned on their own goroutine so a cancelled context ends a read
// without waiting for the next newline.
type lineReader struct {
	scanner *bufio.Scanner
	start   sync.Once
	lines   chan string

	mu      sync.Mutex
	scanErr error
}

func newLineReader(sc *bufio.Scanner) *lineReader {
	return &lineReader{scanner: sc, lines: make(chan string)}
}

func (lr *lineReader) pump() {
	defer close(lr.lines)
	for lr.scanner.Scan() {
		lr.lines <- strings.TrimRight(lr.scanner.Text(), "\r")
	}
	lr.mu.Lock()
	lr.scanErr = lr.scanner.Err()
	lr.mu.Unlock()
}

// next returns the following line. done is true at end of input or when ctx
// is cancelled.
func (lr *lineReader) next(ctx context.Context) (line string, done bool) {
	lr.start.Do(func() { go lr.pump() })
	select {
	case <-ctx.Done():
		return "", true
	case line, ok := <-lr.lines:
		return line, !ok
	}
}

// readMessage returns one logical message. ok is false when ctx is cancelled,
// or at end of input with nothing buffered.
func (lr *lineReader) readMessage(ctx context.Context) (string, bool) {
	var parts []string
	for {
		line, done := lr.next(ctx)
		if done {
			if ctx.Err() == nil && len(parts) > 0 {
				return strings.Join(parts, "\n"), true
			}
			return "", false
		}
		if strings.HasSuffix(line, `\`) {
			parts = append(parts, strings.TrimSuffix(line, `\`))
			continue
		}
		parts = append(parts, line)
		return strings.Join(parts, "\n"), true
	}
}

// readBlock collects lines until a lone "." or end of input. ok is false when
// ctx is cancelled first.
func (lr *lineReader) readBlock(ctx context.Context) (string, bool) {
	var lines []string
	for {
		line, done := lr.next(ctx)
		if done {
			break
		}
		if strings.TrimSpace(line) == batchTerminator {
			break
		}
		lines = append(lines, line)
	}
	if ctx.Err() != nil {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

func (lr *lineReader) err() error {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.scanErr
}

// parseCommand splits "/switch abc" into ("switch", "abc"). ok is false when
// input is not a slash command.
func parseCommand(input string) (name, arg string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") || len(input) == 1 {
		return "", "", false
	}
	name, arg, _ = strings.Cut(input[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}
