package chunker

import (
	"regexp"
	"strings"
	"unicode"
)

// Piece is one chunk of a document's text, in document order.
type Piece struct {
	Text       string
	ArticleRef string
}

var articleRe = regexp.MustCompile(`(?m)^\s*(?:Article|ARTICLE|Art\.|§)\s*(\d+[A-Za-z]?)|^\s*第\s*([0-9０-９一二三四五六七八九十百]+)\s*条`)

// Split cuts text into overlapping pieces of at most maxSize runes each.
// Natural boundaries (paragraph breaks, sentence ends) are preferred; sentences
// are accumulated greedily until the budget is reached, then the next piece
// restarts with the trailing overlap runes of the previous one. A single
// sentence longer than maxSize is emitted as its own oversized piece rather
// than truncated. Identical input and parameters always yield the identical
// sequence.
func Split(text string, maxSize, overlap int) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxSize <= 0 {
		maxSize = 512
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = 0
	}

	units := sentenceUnits(text)
	refs := articleRefs(text, units)

	var pieces []Piece
	var cur []rune
	tailLen := 0 // leading runes of cur copied from the previous piece
	curRef := ""

	for i, u := range units {
		ur := []rune(u.text)
		if len(cur)+len(ur) > maxSize {
			if len(cur) > tailLen {
				pieces = append(pieces, Piece{Text: string(cur), ArticleRef: curRef})
				// Carry the tail of the emitted piece forward across the cut.
				tail := cur
				if len(tail) > overlap {
					tail = tail[len(tail)-overlap:]
				}
				cur = append([]rune(nil), tail...)
				tailLen = len(cur)
				curRef = refs[i]
			}
			if len(ur) > maxSize {
				// A sentence that exceeds the piece size on its own becomes
				// its own piece, without any carried tail.
				pieces = append(pieces, Piece{Text: u.text, ArticleRef: refs[i]})
				tail := ur
				if len(tail) > overlap {
					tail = tail[len(tail)-overlap:]
				}
				cur = append([]rune(nil), tail...)
				tailLen = len(cur)
				curRef = refs[i]
				continue
			}
		}
		if len(cur) == 0 {
			curRef = refs[i]
		}
		cur = append(cur, ur...)
	}
	if len(cur) > tailLen {
		pieces = append(pieces, Piece{Text: string(cur), ArticleRef: curRef})
	}

	return pieces
}

type unit struct {
	text  string
	start int // rune offset into the original text
}

// sentenceUnits splits text into substrings that concatenate back to the
// original exactly. A unit ends after sentence punctuation (plus any trailing
// whitespace) or at a paragraph break.
func sentenceUnits(text string) []unit {
	runes := []rune(text)
	var units []unit
	start := 0
	i := 0
	for i < len(runes) {
		r := runes[i]
		boundary := false
		switch r {
		case '.', '!', '?', '。', '！', '？', '；', ';':
			boundary = true
		case '\n':
			// Blank line terminates a paragraph.
			if i+1 < len(runes) && runes[i+1] == '\n' {
				boundary = true
			}
		}
		i++
		if boundary {
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			units = append(units, unit{text: string(runes[start:i]), start: start})
			start = i
		}
	}
	if start < len(runes) {
		units = append(units, unit{text: string(runes[start:]), start: start})
	}
	return units
}

// articleRefs resolves, for each unit, the article heading in force at its
// position. Sources without article structure yield empty refs.
func articleRefs(text string, units []unit) []string {
	matches := articleRe.FindAllStringSubmatchIndex(text, -1)
	refs := make([]string, len(units))
	if len(matches) == 0 {
		return refs
	}

	// Convert byte offsets to rune offsets once.
	byteToRune := make(map[int]int, len(matches))
	for _, m := range matches {
		byteToRune[m[0]] = len([]rune(text[:m[0]]))
	}

	for i, u := range units {
		ref := ""
		for _, m := range matches {
			if byteToRune[m[0]] > u.start {
				break
			}
			ref = refLabel(text, m)
		}
		refs[i] = ref
	}
	return refs
}

func refLabel(text string, m []int) string {
	if m[2] >= 0 {
		return "Article " + text[m[2]:m[3]]
	}
	if len(m) > 5 && m[4] >= 0 {
		return "第" + text[m[4]:m[5]] + "条"
	}
	return ""
}
