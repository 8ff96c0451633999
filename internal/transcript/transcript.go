// Package transcript defines the input formats the pipeline consumes:
// structured-section documents (parliamentary debate text) and
// timestamped caption streams (video subtitles).
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Section is one pre-segmented portion of a structured transcript.
type Section struct {
	Title       string `json:"title"`
	SectionType string `json:"section_type"`
	Text        string `json:"text"`
}

// Caption is a single timestamped subtitle entry. Times are seconds
// from the start of the recording.
type Caption struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
	Text  string  `json:"text"`
}

// Session holds one transcript in whichever form it arrived.
// Exactly one of Sections or Captions is populated.
type Session struct {
	Sections []Section
	Captions []Caption
}

// IsStructured reports whether the session came in pre-segmented form.
func (s *Session) IsStructured() bool {
	return len(s.Sections) > 0
}

// IsEmpty reports whether the session carries no usable text.
func (s *Session) IsEmpty() bool {
	for _, sec := range s.Sections {
		if strings.TrimSpace(sec.Text) != "" {
			return false
		}
	}
	for _, cap := range s.Captions {
		if strings.TrimSpace(cap.Text) != "" {
			return false
		}
	}
	return true
}

// Duration returns the caption stream length in seconds, or zero for
// structured sessions.
func (s *Session) Duration() float64 {
	if len(s.Captions) == 0 {
		return 0
	}
	return s.Captions[len(s.Captions)-1].End
}

// sessionDocument is the on-disk shape of a structured transcript.
type sessionDocument struct {
	Sections []Section `json:"sections"`
	Captions []Caption `json:"captions"`
}

// LoadFile reads a transcript from disk. ".vtt" files are parsed as
// WebVTT caption streams; ".json" files as structured-section documents
// (or pre-converted caption lists).
func LoadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		captions, err := ParseVTT(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse vtt: %w", err)
		}
		return &Session{Captions: captions}, nil
	case ".json":
		var doc sessionDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse transcript json: %w", err)
		}
		return &Session{Sections: doc.Sections, Captions: doc.Captions}, nil
	default:
		return nil, fmt.Errorf("unsupported transcript format: %s", filepath.Ext(path))
	}
}
