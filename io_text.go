package caravel

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ReadLines reads a text file and returns its lines without trailing
// newlines. A trailing newline on the last line does not produce an
// extra empty entry.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadLinesFromReader(f)
}

// ReadLinesFromReader reads lines from an io.Reader.
func ReadLinesFromReader(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read line %d: %w", len(lines), err)
	}
	return lines, nil
}

// WriteLines writes lines to a text file, one per line with a trailing
// newline after each.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return WriteLinesToWriter(f, lines)
}

// WriteLinesToWriter writes lines to an io.Writer.
func WriteLinesToWriter(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for i, line := range lines {
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("failed to write line %d: %w", i, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write line %d: %w", i, err)
		}
	}
	return bw.Flush()
}
