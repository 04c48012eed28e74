package storage

import (
	"regexp"
	"strings"

	"github.com/Benny93/argflow-go/internal/document"
)

var (
	separatorPattern = regexp.MustCompile(`[_\.\-\s/:,;]+`)
	camelPattern     = regexp.MustCompile(`([a-z])([A-Z])`)
	letterDigit      = regexp.MustCompile(`([a-zA-Z])(\d)`)
	digitLetter      = regexp.MustCompile(`(\d)([a-zA-Z])`)
)

// snippetLength bounds the text payload excerpt stored with each node.
const snippetLength = 80

// tokenize splits text into lower-case search tokens: the whole text, its
// separator-delimited parts, camelCase words and letter/digit runs.
func tokenize(text string) []string {
	text = strings.ReplaceAll(text, "\x00", "")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := make(map[string]bool)
	add := func(parts ...string) {
		for _, p := range parts {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				tokens[p] = true
			}
		}
	}

	add(text)
	add(separatorPattern.Split(text, -1)...)
	add(strings.Fields(separatorPattern.ReplaceAllString(camelPattern.ReplaceAllString(text, "$1 $2"), " "))...)

	numSplit := letterDigit.ReplaceAllString(text, "$1 $2")
	numSplit = digitLetter.ReplaceAllString(numSplit, "$1 $2")
	add(strings.Fields(separatorPattern.ReplaceAllString(numSplit, " "))...)

	result := make([]string, 0, len(tokens))
	for token := range tokens {
		result = append(result, token)
	}
	return result
}

// indexedNode is the searchable content of one document node.
type indexedNode struct {
	ID       string `json:"id"`
	NodeType string `json:"node_type"`
	Snippet  string `json:"snippet,omitempty"`
	tokens   map[string]int
}

// indexNodes extracts the searchable content of every node of doc: the node
// id and, for text payloads, the payload text. Image payload paths are not
// indexed.
func indexNodes(doc *document.Document) []indexedNode {
	nodes := make([]indexedNode, 0, len(doc.Nodes))
	for _, id := range doc.NodeIDs() {
		n := doc.Nodes[id]
		entry := indexedNode{ID: id, NodeType: string(n.NodeType), tokens: make(map[string]int)}

		for _, tok := range tokenize(id) {
			entry.tokens[tok]++
		}
		if text, ok := textPayload(n); ok {
			for _, tok := range tokenize(text) {
				entry.tokens[tok]++
			}
			entry.Snippet = truncate(text, snippetLength)
		}
		nodes = append(nodes, entry)
	}
	return nodes
}

func textPayload(n *document.Node) (string, bool) {
	if n.Payload == nil || n.Payload.Pair != nil {
		return "", false
	}
	switch n.ContentType {
	case document.ContentString, "":
		return n.Payload.Text, n.Payload.Text != ""
	default:
		return "", false
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
