package tracker

import (
	"encoding/json"
	"strings"
)

// adfNode is the subset of the Atlassian Document Format used for comments,
// descriptions and worklog notes.
type adfNode struct {
	Type    string    `json:"type"`
	Version int       `json:"version,omitempty"`
	Text    string    `json:"text,omitempty"`
	Content []adfNode `json:"content,omitempty"`
}

// textDocument wraps plain text in a document, one paragraph per line.
func textDocument(text string) adfNode {
	doc := adfNode{Type: "doc", Version: 1}
	for _, line := range strings.Split(text, "\n") {
		p := adfNode{Type: "paragraph"}
		if line != "" {
			p.Content = []adfNode{{Type: "text", Text: line}}
		}
		doc.Content = append(doc.Content, p)
	}
	return doc
}

// plainText flattens a document (or a plain JSON string) into text.
func plainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}

	var blocks []string
	var walk func(n adfNode, b *strings.Builder)
	walk = func(n adfNode, b *strings.Builder) {
		if n.Type == "text" {
			b.WriteString(n.Text)
			return
		}
		if n.Type == "hardBreak" {
			b.WriteString("\n")
			return
		}
		for _, c := range n.Content {
			walk(c, b)
		}
	}
	for _, block := range doc.Content {
		var b strings.Builder
		walk(block, &b)
		blocks = append(blocks, b.String())
	}
	return strings.TrimSpace(strings.Join(blocks, "\n"))
}
