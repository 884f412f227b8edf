package htmlconv

import (
	"strings"
	"testing"
)

func TestIsHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "DOCTYPE HTML",
			input:    "<!DOCTYPE html><html><body>Test</body></html>",
			expected: true,
		},
		{
			name:     "Simple HTML with tags",
			input:    "<div><p>Hello</p><p>World</p></div>",
			expected: true,
		},
		{
			name:     "Plain text",
			input:    "What is 2+2?",
			expected: false,
		},
		{
			name:     "Comparison is not a tag",
			input:    "Is 3 < 4 and 5 > 2?",
			expected: false,
		},
		{
			name:     "Single HTML tag",
			input:    "Check out <a href='test.com'>this link</a>",
			expected: false,
		},
		{
			name:     "Multiple HTML tags",
			input:    "<h1>Title</h1><p>Paragraph 1</p><p>Paragraph 2</p>",
			expected: true,
		},
		{
			name:     "Email-style angle brackets",
			input:    "Contact me at <user@example.com>",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := isHTML(tt.input); result != tt.expected {
				t.Errorf("isHTML() = %v, want %v for input: %s", result, tt.expected, tt.input)
			}
		})
	}
}

func TestConvertIfHTML(t *testing.T) {
	tests := []struct {
		name            string
		input           string
		expectConverted bool
		checkOutput     func(string) bool
	}{
		{
			name:            "Convert simple HTML",
			input:           "<h1>Title</h1><p>Paragraph text</p>",
			expectConverted: true,
			checkOutput: func(output string) bool {
				return strings.Contains(output, "# Title") && strings.Contains(output, "Paragraph text")
			},
		},
		{
			name:            "Plain text unchanged",
			input:           "This is plain text",
			expectConverted: false,
			checkOutput: func(output string) bool {
				return output == "This is plain text"
			},
		},
		{
			name:            "Convert HTML list",
			input:           "<ul><li>Item 1</li><li>Item 2</li><li>Item 3</li></ul>",
			expectConverted: true,
			checkOutput: func(output string) bool {
				return strings.Contains(output, "Item 1") &&
					strings.Contains(output, "Item 2") &&
					strings.Contains(output, "Item 3")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, converted := ConvertIfHTML(tt.input)
			if converted != tt.expectConverted {
				t.Errorf("ConvertIfHTML() converted = %v, want %v", converted, tt.expectConverted)
			}
			if tt.checkOutput != nil && !tt.checkOutput(output) {
				t.Errorf("ConvertIfHTML() output validation failed. Output:\n%s", output)
			}
		})
	}
}

const wikiLead = `<div class="mw-content-ltr mw-parser-output" lang="en" dir="ltr">
<div class="shortdescription nomobile noexcerpt noprint searchaux" style="display:none">Irrational number</div>
<div role="note" class="hatnote navigation-not-searchable">For other uses, see Pi (disambiguation).</div>
<table class="infobox"><tr><td>Infobox value</td></tr></table>
<p>The number <b>π</b> is a <a href="/wiki/Mathematical_constant" title="Mathematical constant">mathematical constant</a> approximately equal to 3.14159.<sup id="cite_ref-1" class="reference"><a href="#cite_note-1">[1]</a></sup>
It is defined as the ratio <span class="mwe-math-element"><span class="mwe-math-mathml-inline" style="display: none;"><math><semantics><mrow><mi>C</mi><mo>/</mo><mi>d</mi></mrow><annotation encoding="application/x-tex">{\displaystyle C/d}</annotation></semantics></math></span><img src="x.svg" class="mwe-math-fallback-image-inline" alt="{\displaystyle C/d}"></span> of a circle's circumference to its diameter.</p>
<!-- comment -->
<h2>History<span class="mw-editsection">[edit]</span></h2>
<p>Known since antiquity, x<sup>2</sup> style notation came later.</p>
<div class="reflist"><ol class="references"><li>Reference text</li></ol></div>
</div>`

func TestToMarkdownWikipediaLead(t *testing.T) {
	output, err := ToMarkdown(wikiLead)
	if err != nil {
		t.Fatalf("ToMarkdown returned error: %v", err)
	}

	for _, wanted := range []string{"mathematical constant", "3.14159", "$C/d$", "History", "Known since antiquity"} {
		if !strings.Contains(output, wanted) {
			t.Errorf("output missing %q:\n%s", wanted, output)
		}
	}
	for _, unwanted := range []string{"Irrational number", "disambiguation", "Infobox value", "[1]", "[edit]", "Reference text", "comment", "displaystyle"} {
		if strings.Contains(output, unwanted) {
			t.Errorf("output contains %q:\n%s", unwanted, output)
		}
	}
}

func TestPlainTextDropsLinksAndEmphasis(t *testing.T) {
	output, err := PlainText(wikiLead)
	if err != nil {
		t.Fatalf("PlainText returned error: %v", err)
	}
	if strings.Contains(output, "/wiki/") || strings.Contains(output, "**") {
		t.Errorf("markdown decoration left in output:\n%s", output)
	}
	if !strings.Contains(output, "The number π is a mathematical constant") {
		t.Errorf("prose not preserved:\n%s", output)
	}
}

func TestRemoveScriptAndStyle(t *testing.T) {
	output, converted := ConvertIfHTML(`
		<h1>Page Title</h1>
		<script>alert('test');</script>
		<style>.hidden { display: none; }</style>
		<p>Page content</p>
	`)
	if !converted {
		t.Fatal("expected HTML to be converted")
	}
	for _, unwanted := range []string{"alert", ".hidden"} {
		if strings.Contains(output, unwanted) {
			t.Errorf("output contains %q:\n%s", unwanted, output)
		}
	}
	for _, wanted := range []string{"Page Title", "Page content"} {
		if !strings.Contains(output, wanted) {
			t.Errorf("output missing %q:\n%s", wanted, output)
		}
	}
}

func TestCleanMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Remove excessive newlines",
			input:    "Line 1\n\n\n\nLine 2",
			expected: "Line 1\n\nLine 2",
		},
		{
			name:     "Trim whitespace",
			input:    "  \n\nContent\n\n  ",
			expected: "Content",
		},
		{
			name:     "Drop citation markers",
			input:    "Pi is constant.[1] It is irrational.\\[note 2\\]",
			expected: "Pi is constant. It is irrational.",
		},
		{
			name:     "Normal markdown unchanged",
			input:    "# Title\n\nParagraph",
			expected: "# Title\n\nParagraph",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := cleanMarkdown(tt.input); result != tt.expected {
				t.Errorf("cleanMarkdown() = %q, want %q", result, tt.expected)
			}
		})
	}
}
