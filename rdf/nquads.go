package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// WriteNQuads serializes quads as one "S P O [G] ." line per quad, the
// on-disk format for Memento snapshots (spec.md §6). Order is preserved so
// the round-trip invariant (I5: n-quads round-trip as multisets) holds
// without requiring the codec to sort.
func WriteNQuads(w io.Writer, quads []Quad) error {
	bw := bufio.NewWriter(w)
	for _, q := range quads {
		line := q.Subject.String() + " " + q.Predicate.String() + " " + q.Object.String()
		if !q.Graph.IsDefaultGraph() {
			line += " " + q.Graph.String()
		}
		line += " .\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadNQuads parses N-Quads lines. Per spec.md §6 ("malformed lines dropped
// with warning — never a hard failure"), a line that cannot be tokenized is
// logged at warn and skipped rather than aborting the read.
func ReadNQuads(r io.Reader, log *logrus.Logger) ([]Quad, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var quads []Quad
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if raw != "" && (raw[0] == ' ' || raw[0] == '\t') {
			log.WithFields(logrus.Fields{"line": lineNo}).Warn("dropping n-quads line starting with whitespace")
			continue
		}
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		q, err := parseNQuadLine(line)
		if err != nil {
			log.WithFields(logrus.Fields{"line": lineNo, "error": err}).Warn("dropping malformed n-quads line")
			continue
		}
		quads = append(quads, q)
	}
	if err := scanner.Err(); err != nil {
		return quads, err
	}
	return quads, nil
}

func parseNQuadLine(line string) (Quad, error) {
	line = strings.TrimSuffix(strings.TrimSpace(line), ".")
	line = strings.TrimSpace(line)
	toks, err := tokenize(line)
	if err != nil {
		return Quad{}, err
	}
	if len(toks) != 3 && len(toks) != 4 {
		return Quad{}, fmt.Errorf("expected 3 or 4 terms, got %d", len(toks))
	}
	s, err := parseTerm(toks[0])
	if err != nil {
		return Quad{}, fmt.Errorf("subject: %w", err)
	}
	p, err := parseTerm(toks[1])
	if err != nil {
		return Quad{}, fmt.Errorf("predicate: %w", err)
	}
	o, err := parseTerm(toks[2])
	if err != nil {
		return Quad{}, fmt.Errorf("object: %w", err)
	}
	g := DefaultGraph
	if len(toks) == 4 {
		g, err = parseTerm(toks[3])
		if err != nil {
			return Quad{}, fmt.Errorf("graph: %w", err)
		}
	}
	return Quad{Graph: g, Subject: s, Predicate: p, Object: o}, nil
}

// tokenize splits a line into its term tokens, respecting quoted literal
// boundaries so embedded spaces inside "..." do not split a token.
func tokenize(line string) ([]string, error) {
	var toks []string
	i := 0
	n := len(line)
	for i < n {
		for i < n && line[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}
		start := i
		switch line[i] {
		case '<':
			end := strings.IndexByte(line[i:], '>')
			if end < 0 {
				return nil, fmt.Errorf("unterminated IRI")
			}
			i += end + 1
		case '"':
			i++
			for i < n {
				if line[i] == '\\' {
					i += 2
					continue
				}
				if line[i] == '"' {
					i++
					break
				}
				i++
			}
			// consume optional ^^<...> or @lang suffix
			for i < n && line[i] != ' ' {
				i++
			}
		default:
			for i < n && line[i] != ' ' {
				i++
			}
		}
		toks = append(toks, line[start:i])
	}
	return toks, nil
}

func parseTerm(tok string) (Term, error) {
	switch {
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return IRI(tok[1 : len(tok)-1]), nil
	case strings.HasPrefix(tok, "_:"):
		return BlankNode(tok[2:]), nil
	case strings.HasPrefix(tok, `"`):
		return parseLiteral(tok)
	default:
		return Term{}, fmt.Errorf("unrecognized term %q", tok)
	}
}

func parseLiteral(tok string) (Term, error) {
	// tok looks like "value" or "value"@lang or "value"^^<datatype>
	end := 1
	for end < len(tok) {
		if tok[end] == '\\' {
			end += 2
			continue
		}
		if tok[end] == '"' {
			break
		}
		end++
	}
	if end >= len(tok) {
		return Term{}, fmt.Errorf("unterminated literal")
	}
	value := unescapeLiteral(tok[1:end])
	rest := tok[end+1:]
	switch {
	case strings.HasPrefix(rest, "@"):
		return LangLiteral(value, rest[1:]), nil
	case strings.HasPrefix(rest, "^^<") && strings.HasSuffix(rest, ">"):
		return Literal(value, rest[3:len(rest)-1]), nil
	case rest == "":
		return Literal(value, ""), nil
	default:
		return Term{}, fmt.Errorf("malformed literal suffix %q", rest)
	}
}
