package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_IsEmpty(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		assert.True(t, (&Session{}).IsEmpty())
	})

	t.Run("whitespace-only sections", func(t *testing.T) {
		s := &Session{Sections: []Section{{Title: "Oral Answers", Text: "   \n  "}}}
		assert.True(t, s.IsEmpty())
	})

	t.Run("sections with text", func(t *testing.T) {
		s := &Session{Sections: []Section{{Text: "The Minister replied."}}}
		assert.False(t, s.IsEmpty())
	})

	t.Run("captions with text", func(t *testing.T) {
		s := &Session{Captions: []Caption{{Start: 0, End: 2, Text: "hello"}}}
		assert.False(t, s.IsEmpty())
	})
}

func TestSession_Duration(t *testing.T) {
	s := &Session{Captions: []Caption{
		{Start: 0, End: 3, Text: "a"},
		{Start: 3, End: 7.5, Text: "b"},
	}}
	assert.Equal(t, 7.5, s.Duration())
	assert.Equal(t, 0.0, (&Session{}).Duration())
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("vtt file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "session.vtt")
		content := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nhello\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		sess, err := LoadFile(path)
		require.NoError(t, err)
		assert.False(t, sess.IsStructured())
		require.Len(t, sess.Captions, 1)
		assert.Equal(t, "hello", sess.Captions[0].Text)
	})

	t.Run("structured json file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "session.json")
		content := `{"sections":[{"title":"Oral Answers","section_type":"OA","text":"Question one."}]}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		sess, err := LoadFile(path)
		require.NoError(t, err)
		assert.True(t, sess.IsStructured())
		require.Len(t, sess.Sections, 1)
		assert.Equal(t, "Oral Answers", sess.Sections[0].Title)
	})

	t.Run("caption json file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "captions.json")
		content := `{"captions":[{"start_time":0,"end_time":2,"text":"hi"}]}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		sess, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, sess.Captions, 1)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(tmpDir, "session.txt")
		require.NoError(t, os.WriteFile(path, []byte("text"), 0644))

		_, err := LoadFile(path)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(tmpDir, "nope.vtt"))
		assert.Error(t, err)
	})
}
