package filtergraph

import "strings"

// LabelSet lists the pad labels of a filter graph.
type LabelSet struct {
	// Inputs are stream specifiers referencing declared inputs, such as "0:v".
	Inputs []string
	// Defined are labels produced by a clause, in order of appearance.
	Defined []string
	// Consumed are graph labels read by a clause, in order of appearance.
	Consumed []string
}

// Labels parses the labelled pads of every clause in graph. Leading bracketed
// names are inputs to a clause and trailing ones are its outputs.
func Labels(graph string) LabelSet {
	var set LabelSet
	for _, clause := range strings.Split(graph, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		leading, rest := takeLabels(clause)
		for _, name := range leading {
			if strings.Contains(name, ":") {
				set.Inputs = append(set.Inputs, name)
				continue
			}
			set.Consumed = append(set.Consumed, name)
		}
		set.Defined = append(set.Defined, trailingLabels(rest)...)
	}
	return set
}

func takeLabels(s string) ([]string, string) {
	var names []string
	for strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			break
		}
		names = append(names, s[1:end])
		s = s[end+1:]
	}
	return names, s
}

func trailingLabels(s string) []string {
	var names []string
	for strings.HasSuffix(s, "]") {
		start := strings.LastIndexByte(s, '[')
		if start < 0 {
			break
		}
		names = append([]string{s[start+1 : len(s)-1]}, names...)
		s = s[:start]
	}
	return names
}
