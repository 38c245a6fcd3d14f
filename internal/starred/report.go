package starred

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NoSubject is printed for messages without a Subject header.
const NoSubject = "(no subject)"

// Report is the JSON form of a run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Messages    []Result  `json:"messages"`
}

// NewReport stamps results with the service clock.
func (s *Service) NewReport(results []Result) Report {
	if results == nil {
		results = []Result{}
	}
	return Report{GeneratedAt: s.Clock(), Count: len(results), Messages: results}
}

// WriteLines prints one subject per line in listing order.
func WriteLines(w io.Writer, results []Result) error {
	if w == nil {
		w = os.Stdout
	}
	for _, r := range results {
		line := r.Subject
		if !r.HasSubject {
			line = NoSubject
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("write subject: %w", err)
		}
	}
	return nil
}

// WriteJSON serializes the report to a path relative to the working directory.
func WriteJSON(rep Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(rep); encodeErr != nil {
		return fmt.Errorf("encode report: %w", encodeErr)
	}
	return nil
}
