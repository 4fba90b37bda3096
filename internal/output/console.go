package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	findings        []Finding // For JSON array output
	allowedStatuses map[string]bool
	palette         map[Status]*color.Color
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
		palette: map[Status]*color.Color{
			StatusPass:  color.New(color.FgGreen),
			StatusFail:  color.New(color.FgRed, color.Bold),
			StatusWarn:  color.New(color.FgYellow),
			StatusInfo:  color.New(color.FgCyan),
			StatusError: color.New(color.FgMagenta, color.Bold),
		},
	}

	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[string]bool)
		for _, st := range filterStatuses {
			s.allowedStatuses[strings.ToUpper(strings.TrimSpace(st))] = true
		}
	}

	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(v)
}

func (s *ConsoleSink) writeLocked(v any) error {
	if len(s.allowedStatuses) > 0 {
		if f, ok := v.(Finding); ok {
			if !s.allowedStatuses[string(f.Status)] {
				return nil
			}
		}
	}

	switch s.format {
	case "json":
		f, ok := v.(Finding)
		if !ok {
			// Ignore events and summaries in JSON console mode.
			return nil
		}
		s.findings = append(s.findings, f)
		return nil
	case "ndjson":
		encoder := json.NewEncoder(s.writer)
		switch t := v.(type) {
		case Event:
			if err := encoder.Encode(t); err != nil {
				return err
			}
			return flush(s.writer)
		case Finding:
			if err := encoder.Encode(eventFromFinding(t)); err != nil {
				return err
			}
			return flush(s.writer)
		default:
			return nil
		}
	case "text":
		switch t := v.(type) {
		case Finding:
			if err := s.writeFinding(t); err != nil {
				return err
			}
		case Summary:
			if err := writeSummary(s.writer, t); err != nil {
				return err
			}
		default:
			// Ignore events in text mode.
			return nil
		}
		return flush(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeFinding(f Finding) error {
	status := string(f.Status)
	if c, ok := s.palette[f.Status]; ok {
		status = c.Sprint(status)
	}
	line := fmt.Sprintf("[%s] %s", status, f.Check)
	if f.Subject != "" {
		line = fmt.Sprintf("[%s] %s: %s", status, f.Subject, f.Check)
	}
	if f.Message != "" {
		line += " - " + f.Message
	}
	_, err := fmt.Fprintln(s.writer, line)
	return err
}

func writeSummary(w io.Writer, sum Summary) error {
	if sum.Title != "" {
		if _, err := fmt.Fprintln(w, color.New(color.Bold).Sprint(sum.Title)); err != nil {
			return err
		}
	}
	for _, l := range sum.Lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		findings := s.findings
		if findings == nil {
			findings = []Finding{}
		}
		if err := encoder.Encode(findings); err != nil {
			return err
		}
		return flush(s.writer)
	}
	if s.format != "text" && s.format != "ndjson" {
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
	return nil
}
