package markdown

import (
	"strings"
	"testing"
)

const doc = `---
subject: Hello there
---

Your goal **bike** is done.
`

func TestParse(t *testing.T) {
	html, err := NewParser().Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := string(html)
	if !strings.Contains(got, "<strong>bike</strong>") {
		t.Fatalf("html = %q", got)
	}
	if strings.Contains(got, "subject") {
		t.Fatalf("front matter leaked into html: %q", got)
	}
}

func TestParseOmitsRawHTML(t *testing.T) {
	html, err := NewParser().Parse([]byte(`Goal <script>alert(1)</script>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatalf("raw html rendered: %q", html)
	}
}

func TestExtractFrontmatter(t *testing.T) {
	p := NewParser()

	meta := p.ExtractFrontmatter([]byte(doc))
	if meta["subject"] != "Hello there" {
		t.Fatalf("meta = %v", meta)
	}

	if meta := p.ExtractFrontmatter([]byte("no front matter")); len(meta) != 0 {
		t.Fatalf("meta = %v, want empty", meta)
	}
}

func TestStripFrontmatter(t *testing.T) {
	got := string(StripFrontmatter([]byte(doc)))
	if got != "Your goal **bike** is done.\n" {
		t.Fatalf("body = %q", got)
	}

	plain := "just text\n"
	if got := string(StripFrontmatter([]byte(plain))); got != plain {
		t.Fatalf("body = %q, want unchanged", got)
	}
}
