package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Sternrassler/ctgov-extractor/pkg/client"
)

const promptText = "Enter the date (YYYY-MM-DD) to only fetch studies changed from onwards (leave blank for all studies): "

// promptSince writes the prompt to out and returns the trimmed first line of
// in. End of input counts as a blank answer.
func promptSince(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, promptText)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read date: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// parseSince validates a date answer. Blank means no filter.
func parseSince(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := client.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func invalidDateMessage(err error) string {
	return "Please enter data in correct format (YYYY-MM-DD) example: 2024-04-10 " + err.Error()
}
