package fetch

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>NVDA Q2 Earnings Beat</title>
  <style>body { color: red }</style>
  <script>trackPageview();</script>
</head>
<body>
  <nav><a href="/">Home</a> <a href="/markets">Markets</a></nav>
  <article>
    <h1>Nvidia beats estimates</h1>
    <p>Revenue came in at $30.0B against consensus of $28.7B.</p>
    <ul><li>Data center: $26.3B</li><li>Gaming: $2.9B</li></ul>
  </article>
  <footer>Copyright 2026</footer>
</body>
</html>`

func TestExtractHTML(t *testing.T) {
	title, content := extractHTML(samplePage)

	if title != "NVDA Q2 Earnings Beat" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(content, "Revenue came in at $30.0B") {
		t.Errorf("content missing article text:\n%s", content)
	}
	if !strings.Contains(content, "Data center: $26.3B") {
		t.Errorf("content missing list items:\n%s", content)
	}

	// Boilerplate must be stripped
	for _, banned := range []string{"trackPageview", "color: red", "Copyright 2026", "Markets"} {
		if strings.Contains(content, banned) {
			t.Errorf("content contains boilerplate %q", banned)
		}
	}
}

func TestCleanWhitespace(t *testing.T) {
	in := "a   b\n\n\n\nc\t\td\n"
	got := cleanWhitespace(in)
	if got != "a b\n\nc d" {
		t.Errorf("cleanWhitespace = %q", got)
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "héllo wörld"
	got := truncateUTF8(s, 5)
	if got != "héllo" {
		t.Errorf("truncateUTF8 = %q", got)
	}
	// Never split a multi-byte rune
	for _, r := range got {
		if r == '�' {
			t.Error("truncation produced replacement character")
		}
	}
}
