package nlp

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ResumeChunk is a normalized fragment of a résumé.
type ResumeChunk struct {
	Text string
	// Offset is the byte offset of the fragment in the raw résumé text.
	Offset int
	// Section is set for chunks taken from the skills section extract.
	Section bool
}

// ChunkOptions tunes Chunk.
type ChunkOptions struct {
	// SkillsSection appends the fragments of a "Skills" section as extra chunks.
	SkillsSection bool
}

var (
	reStructural   = regexp.MustCompile(`\r\n|[\n\r•●▪◦‣∙·]`)
	reSectionSplit = regexp.MustCompile(`\r\n|[\n\r,;:•●▪◦‣∙·]`)
	reSkillsLabel  = regexp.MustCompile(`(?i)^\s*(?:[\p{L}]+\s+){0,2}skills\b\s*:?\s*(.*)$`)
)

const maxHeadingWords = 5

// Chunk splits a résumé on structural delimiters (line breaks and bullet
// markers) and normalizes every fragment. Commas and sentence punctuation
// do not split, so multi-word skills stay intact. Text without delimiters
// becomes a single chunk; empty fragments are dropped.
func Chunk(resume string, opts ChunkOptions) []ResumeChunk {
	chunks := splitNormalized(resume, 0, reStructural, false)

	if opts.SkillsSection {
		if block, offset, ok := SkillsSection(resume); ok {
			chunks = append(chunks, splitNormalized(block, offset, reSectionSplit, true)...)
		}
	}

	return chunks
}

func splitNormalized(text string, base int, delim *regexp.Regexp, section bool) []ResumeChunk {
	var chunks []ResumeChunk
	start := 0

	emit := func(end int) {
		normalized := Normalize(text[start:end])
		if normalized != "" {
			chunks = append(chunks, ResumeChunk{Text: normalized, Offset: base + start, Section: section})
		}
	}

	for _, loc := range delim.FindAllStringIndex(text, -1) {
		emit(loc[0])
		start = loc[1]
	}
	emit(len(text))

	return chunks
}

// SkillsSection locates a heading labelled "skills" (case-insensitive, e.g.
// "Skills", "Technical Skills:") and returns the text that follows it up to
// the next heading-like line, with its byte offset in the résumé.
func SkillsSection(resume string) (string, int, bool) {
	lines := strings.SplitAfter(resume, "\n")

	offset := 0
	for i, line := range lines {
		m := reSkillsLabel.FindStringSubmatchIndex(strings.TrimRight(line, "\r\n"))
		if m == nil || !isSkillsHeading(line) {
			offset += len(line)
			continue
		}

		// text after the label on the heading line itself is part of the block.
		blockStart := offset + m[2]
		blockEnd := offset + len(line)
		for _, next := range lines[i+1:] {
			if isHeadingLike(next) {
				break
			}
			blockEnd += len(next)
		}

		block := resume[blockStart:blockEnd]
		if strings.TrimSpace(block) == "" {
			return "", 0, false
		}
		return block, blockStart, true
	}

	return "", 0, false
}

// isSkillsHeading rejects prose lines that merely mention skills.
func isSkillsHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	label, _, hasColon := strings.Cut(trimmed, ":")
	if hasColon {
		return len(strings.Fields(label)) <= 3
	}
	return len(strings.Fields(trimmed)) <= 3
}

// isHeadingLike reports whether a line looks like a section heading: it starts
// with an uppercase letter and is either all caps or a short line ending in ':'.
func isHeadingLike(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(trimmed)
	if !unicode.IsUpper(first) {
		return false
	}
	if strings.HasSuffix(trimmed, ":") && len(strings.Fields(trimmed)) <= maxHeadingWords {
		return true
	}
	// comma separated acronyms ("SQL, AWS") are skill lists, not headings.
	if strings.Contains(trimmed, ",") || len(strings.Fields(trimmed)) > maxHeadingWords {
		return false
	}

	letters := 0
	for _, r := range trimmed {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsLower(r) {
			return false
		}
		letters++
	}
	return letters > 3
}
