package extractor

import "fmt"

// extractionPrompt asks for a liberal pass over one chunk: every
// excerpt scoring 7 or higher on standalone appeal, capped per chunk.
func extractionPrompt(chunkText string, cap int) string {
	return fmt.Sprintf(`You are reviewing a transcript segment from a long recorded session. Find the moments most likely to succeed as short standalone clips.

A strong moment is self-contained, surprising or emotionally charged, and understandable without the surrounding context. Heated exchanges, sharp one-liners, unexpected admissions and vivid stories all qualify.

Rate each moment 0-10 for standalone appeal. Return ONLY moments scoring 7 or above, at most %d, as JSON:

{
  "moments": [
    {
      "quote": "the exact words from the transcript, verbatim",
      "speaker": "who is speaking, or empty if unknown",
      "topic": "a few words describing the subject",
      "score": 8.5
    }
  ]
}

The quote must be copied verbatim from the transcript below. Return {"moments": []} if nothing qualifies.

Transcript segment:
%s`, cap, chunkText)
}
