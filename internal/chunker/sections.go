package chunker

import (
	"strings"

	"github.com/capless/moments/internal/transcript"
)

// chunkSpec is an intermediate chunk description. firstSec/lastSec are
// section indices for packed chunks, -1 for sub-chunks of an oversized
// section.
type chunkSpec struct {
	text             string
	span             Span
	isSub            bool
	firstSec, lastSec int
	overlapNext      *Span
	overlapPrev      *Span
}

// chunkSections packs whole sections into chunks up to the target size.
// Adjacent packed chunks repeat the trailing section of the previous
// chunk, so exchanges spanning a boundary are seen whole at least once.
// A section above the ceiling is split on its own at paragraph
// boundaries and flagged as sub-chunks.
func (c *Chunker) chunkSections(secs []transcript.Section) []Chunk {
	starts := make([]int, len(secs))
	ends := make([]int, len(secs))
	off := 0
	for i, sec := range secs {
		starts[i] = off
		off += len(sec.Text)
		ends[i] = off
		off += 2 // "\n\n" join
	}

	var specs []chunkSpec
	first, size := -1, 0

	flush := func(lo, hi int) {
		texts := make([]string, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			texts = append(texts, secs[i].Text)
		}
		specs = append(specs, chunkSpec{
			text:     strings.Join(texts, "\n\n"),
			span:     Span{Start: float64(starts[lo]), End: float64(ends[hi])},
			firstSec: lo,
			lastSec:  hi,
		})
	}

	for i, sec := range secs {
		n := len(sec.Text)

		if n > c.cfg.CeilingChars {
			if first >= 0 {
				flush(first, i-1)
			}
			specs = append(specs, c.splitSection(sec.Text, starts[i])...)
			first, size = -1, 0
			continue
		}

		if first >= 0 && size+n > c.cfg.TargetChars {
			flush(first, i-1)
			// Seed the next chunk with the trailing section unless the
			// pair alone would already blow the target.
			seed := i - 1
			if len(secs[seed].Text)+n <= c.cfg.TargetChars {
				first, size = seed, len(secs[seed].Text)
			} else {
				first, size = -1, 0
			}
		}
		if first < 0 {
			first, size = i, 0
		}
		size += n
	}
	if first >= 0 {
		flush(first, len(secs)-1)
	}

	// Packed chunks that share sections overlap on exactly those sections.
	for i := 0; i+1 < len(specs); i++ {
		a, b := &specs[i], &specs[i+1]
		if a.lastSec < 0 || b.firstSec < 0 || b.firstSec > a.lastSec {
			continue
		}
		span := Span{Start: float64(starts[b.firstSec]), End: float64(ends[a.lastSec])}
		a.overlapNext = &span
		prev := span
		b.overlapPrev = &prev
	}

	chunks := make([]Chunk, len(specs))
	for i, sp := range specs {
		chunks[i] = Chunk{
			ID:              chunkID(i),
			SequenceIndex:   i,
			Text:            sp.text,
			Span:            sp.span,
			OverlapWithPrev: sp.overlapPrev,
			OverlapWithNext: sp.overlapNext,
			IsSubchunk:      sp.isSub,
		}
	}
	return chunks
}

// textPiece is a paragraph (or sentence group carved from an oversized
// paragraph) with its byte offset in the section text.
type textPiece struct {
	start int
	end   int
}

// splitSection splits an oversized section at paragraph boundaries,
// repeating the trailing paragraph across consecutive sub-chunks.
// Paragraphs above the target are further split at sentence boundaries;
// no split ever lands mid-sentence.
func (c *Chunker) splitSection(text string, base int) []chunkSpec {
	pieces := c.sectionPieces(text)
	if len(pieces) == 0 {
		return nil
	}

	// Pack contiguous pieces up to the target size.
	type pieceRange struct{ lo, hi int }
	var ranges []pieceRange
	lo, size := 0, 0
	for i, p := range pieces {
		n := p.end - p.start
		if i > lo && size+n > c.cfg.TargetChars {
			ranges = append(ranges, pieceRange{lo: lo, hi: i - 1})
			// Seed the next sub-chunk with the trailing paragraph
			// unless the pair alone would already blow the target.
			seedSize := pieces[i-1].end - pieces[i-1].start
			if seedSize+n <= c.cfg.TargetChars {
				lo, size = i-1, seedSize
			} else {
				lo, size = i, 0
			}
		}
		size += n
	}
	ranges = append(ranges, pieceRange{lo: lo, hi: len(pieces) - 1})

	specs := make([]chunkSpec, len(ranges))
	for i, r := range ranges {
		specs[i] = chunkSpec{
			text:     text[pieces[r.lo].start:pieces[r.hi].end],
			span:     Span{Start: float64(base + pieces[r.lo].start), End: float64(base + pieces[r.hi].end)},
			isSub:    true,
			firstSec: -1,
			lastSec:  -1,
		}
	}
	for i := 0; i+1 < len(ranges); i++ {
		if ranges[i+1].lo > ranges[i].hi {
			continue
		}
		span := Span{
			Start: float64(base + pieces[ranges[i+1].lo].start),
			End:   float64(base + pieces[ranges[i].hi].end),
		}
		specs[i].overlapNext = &span
		prev := span
		specs[i+1].overlapPrev = &prev
	}
	return specs
}

// sectionPieces returns the section's paragraphs in order, with any
// paragraph above the target size expanded into sentence groups.
func (c *Chunker) sectionPieces(text string) []textPiece {
	var out []textPiece
	off := 0
	for _, para := range strings.Split(text, "\n\n") {
		start := off
		off += len(para) + 2
		if strings.TrimSpace(para) == "" {
			continue
		}
		if len(para) <= c.cfg.TargetChars {
			out = append(out, textPiece{start: start, end: start + len(para)})
			continue
		}
		out = append(out, groupSentences(para, start, c.cfg.TargetChars)...)
	}
	return out
}

// groupSentences packs the paragraph's sentences into pieces no larger
// than target, splitting only at sentence boundaries.
func groupSentences(para string, base, target int) []textPiece {
	bounds := sentenceBounds(para)
	var out []textPiece
	lo := 0
	for i := 0; i < len(bounds); i++ {
		if bounds[i].end-bounds[lo].start > target && i > lo {
			out = append(out, textPiece{start: base + bounds[lo].start, end: base + bounds[i-1].end})
			lo = i
		}
	}
	out = append(out, textPiece{start: base + bounds[lo].start, end: base + bounds[len(bounds)-1].end})
	return out
}

// sentenceBounds finds sentence ranges within text. A sentence ends at
// '.', '!' or '?' followed by whitespace.
func sentenceBounds(text string) []textPiece {
	var out []textPiece
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' && text[i+1] != '\n' && text[i+1] != '\t' {
			continue
		}
		out = append(out, textPiece{start: start, end: i + 1})
		j := i + 1
		for j < len(text) && (text[j] == ' ' || text[j] == '\n' || text[j] == '\t') {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(text) {
		out = append(out, textPiece{start: start, end: len(text)})
	}
	if len(out) == 0 {
		out = append(out, textPiece{start: 0, end: len(text)})
	}
	return out
}
