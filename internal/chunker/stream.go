package chunker

import (
	"math"
	"sort"
	"strings"

	"github.com/capless/moments/internal/transcript"
)

// captionWindow is an inclusive index range into the caption list.
type captionWindow struct {
	startIdx int
	endIdx   int
}

// chunkCaptions splits a caption stream into time windows with a
// trailing overlap. Window boundaries snap to caption ends, so a chunk
// never splits a cue, and are pulled toward detected speaker changes
// when one exists near the target.
func (c *Chunker) chunkCaptions(caps []transcript.Caption) []Chunk {
	caps = dropEmptyCaptions(caps)
	if len(caps) == 0 {
		return nil
	}

	maxTime := caps[len(caps)-1].End
	var windows []captionWindow

	cursor := caps[0].Start
	for {
		targetEnd := cursor + c.cfg.WindowSeconds

		var boundary float64
		last := false
		if targetEnd >= maxTime {
			boundary = maxTime
			last = true
		} else {
			boundary = snapToCaptionEnd(caps, c.findNaturalBreak(caps, targetEnd))
			if boundary >= maxTime {
				boundary = maxTime
				last = true
			}
		}

		startIdx := firstCaptionAt(caps, cursor)
		if startIdx >= len(caps) {
			break
		}
		// A silent stretch can leave the window empty; grow it to take
		// in the next cue rather than emit a gap.
		if !last && caps[startIdx].Start >= boundary {
			boundary = caps[startIdx].End
			if boundary >= maxTime {
				last = true
			}
		}

		endIdx := startIdx
		if last {
			endIdx = len(caps) - 1
		} else {
			for endIdx+1 < len(caps) && caps[endIdx+1].Start < boundary {
				endIdx++
			}
		}
		windows = append(windows, captionWindow{startIdx: startIdx, endIdx: endIdx})

		if last {
			break
		}
		next := boundary - c.cfg.OverlapSeconds
		if next <= cursor {
			next = boundary
		}
		cursor = next
	}

	return buildStreamChunks(caps, windows)
}

// findNaturalBreak picks the chunk boundary near target. A gap of more
// than MinPauseSeconds between consecutive cues is treated as a probable
// speaker change or topic shift (captions carry no diarization, so pause
// length is the only available signal); the boundary snaps to the
// qualifying gap nearest the target within BoundarySlackSeconds,
// preferring longer pauses on distance ties. Falls back to the raw
// target when no gap qualifies.
func (c *Chunker) findNaturalBreak(caps []transcript.Caption, target float64) float64 {
	type gap struct {
		at    float64
		pause float64
	}
	var candidates []gap

	for i := 0; i < len(caps)-1; i++ {
		end := caps[i].End
		if math.Abs(end-target) > c.cfg.BoundarySlackSeconds {
			continue
		}
		if pause := caps[i+1].Start - end; pause > c.cfg.MinPauseSeconds {
			candidates = append(candidates, gap{at: end, pause: pause})
		}
	}
	if len(candidates) == 0 {
		return target
	}

	sort.Slice(candidates, func(i, j int) bool {
		di, dj := math.Abs(candidates[i].at-target), math.Abs(candidates[j].at-target)
		if di != dj {
			return di < dj
		}
		return candidates[i].pause > candidates[j].pause
	})
	return candidates[0].at
}

// snapToCaptionEnd moves t to the end of the last cue starting before it.
func snapToCaptionEnd(caps []transcript.Caption, t float64) float64 {
	snapped := caps[0].End
	for _, cp := range caps {
		if cp.Start >= t {
			break
		}
		snapped = cp.End
	}
	return snapped
}

// firstCaptionAt returns the index of the first cue starting at or after t.
func firstCaptionAt(caps []transcript.Caption, t float64) int {
	return sort.Search(len(caps), func(i int) bool {
		return caps[i].Start >= t
	})
}

func buildStreamChunks(caps []transcript.Caption, windows []captionWindow) []Chunk {
	chunks := make([]Chunk, 0, len(windows))
	for i, w := range windows {
		sub := caps[w.startIdx : w.endIdx+1]
		texts := make([]string, len(sub))
		for j, cp := range sub {
			texts[j] = cp.Text
		}

		chunk := Chunk{
			ID:            chunkID(i),
			SequenceIndex: i,
			Text:          strings.Join(texts, " "),
			Span:          Span{Start: sub[0].Start, End: sub[len(sub)-1].End},
			Captions:      append([]transcript.Caption(nil), sub...),
		}
		chunks = append(chunks, chunk)
	}

	// Overlap spans cover the cues shared by adjacent windows.
	for i := 0; i+1 < len(windows); i++ {
		cur, next := windows[i], windows[i+1]
		if next.startIdx > cur.endIdx {
			continue
		}
		span := Span{Start: caps[next.startIdx].Start, End: caps[cur.endIdx].End}
		chunks[i].OverlapWithNext = &span
		prev := span
		chunks[i+1].OverlapWithPrev = &prev
	}
	return chunks
}

func dropEmptyCaptions(caps []transcript.Caption) []transcript.Caption {
	out := make([]transcript.Caption, 0, len(caps))
	for _, cp := range caps {
		if strings.TrimSpace(cp.Text) != "" {
			out = append(out, cp)
		}
	}
	return out
}
