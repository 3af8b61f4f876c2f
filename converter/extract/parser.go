package extract

import (
	"regexp"
	"strconv"
)

// PaintOperator represents a "/Name Do" XObject paint operation in a content stream
type PaintOperator struct {
	FullMatch string // The complete matched string
	Name      string // Resource name with #xx escapes decoded
	StartPos  int    // Position in the content stream
	EndPos    int    // End position in the content stream
}

// Parser finds XObject paint operators in PDF content streams
type Parser struct {
	doPattern *regexp.Regexp // matches "/Name Do"
}

// NewParser creates a new content stream parser
func NewParser() *Parser {
	// PDF names end at whitespace or a delimiter character
	name := `/([^\s/\[\]<>(){}%]+)`
	ws := `\s+`

	return &Parser{
		doPattern: regexp.MustCompile(name + ws + `Do\b`),
	}
}

// FindPaintOperators finds all XObject paint operators in order of appearance
func (p *Parser) FindPaintOperators(content string) []PaintOperator {
	var operators []PaintOperator

	for _, match := range p.doPattern.FindAllStringSubmatchIndex(content, -1) {
		// Skip matches inside a string literal such as "(see /Im1 Do)"
		if inLiteral(content, match[0]) {
			continue
		}
		operators = append(operators, PaintOperator{
			FullMatch: content[match[0]:match[1]],
			Name:      decodeName(content[match[2]:match[3]]),
			StartPos:  match[0],
			EndPos:    match[1],
		})
	}

	return operators
}

// UniqueNames returns the painted resource names, first occurrence wins
func (p *Parser) UniqueNames(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, op := range p.FindPaintOperators(content) {
		if seen[op.Name] {
			continue
		}
		seen[op.Name] = true
		names = append(names, op.Name)
	}
	return names
}

// inLiteral reports whether pos falls inside an unbalanced "(...)" string
func inLiteral(content string, pos int) bool {
	depth := 0
	for i := 0; i < pos; i++ {
		switch content[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}

// decodeName resolves #xx hex escapes in a PDF name
func decodeName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '#' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				out = append(out, byte(v))
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}
