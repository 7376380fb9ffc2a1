package ldp

import (
	"sort"
	"strconv"
	"strings"

	"trellis.io/ldp/rdfio"
)

// acceptEntry is one parsed media-range from an Accept header, with its
// q-value for ranking.
type acceptEntry struct {
	mediaType string
	q         float64
}

func parseAccept(header string) []acceptEntry {
	if header == "" {
		return nil
	}
	var out []acceptEntry
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		mediaType := strings.TrimSpace(fields[0])
		if mediaType == "" {
			continue
		}
		q := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if strings.HasPrefix(param, "q=") {
				if v, err := strconv.ParseFloat(strings.TrimPrefix(param, "q="), 64); err == nil {
					q = v
				}
			}
		}
		out = append(out, acceptEntry{mediaType: mediaType, q: q})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].q > out[j].q })
	return out
}

// negotiateWriteSyntax picks the highest-ranked Accept media range the I/O
// service can write, per spec.md §4.7. An empty or "*/*" Accept header
// defaults to Turtle; an Accept the service cannot satisfy returns "".
func negotiateWriteSyntax(accept string, svc *rdfio.Service) rdfio.Syntax {
	supported := svc.WriteSyntaxes()
	if accept == "" {
		return rdfio.Turtle
	}
	for _, entry := range parseAccept(accept) {
		if entry.mediaType == "*/*" {
			return rdfio.Turtle
		}
		for _, syn := range supported {
			if entry.mediaType == string(syn) {
				return syn
			}
		}
	}
	return ""
}
