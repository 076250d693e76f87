// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/storage"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

func reply(fragments ...string) *model.Message {
	msg := model.NewMessage(model.RoleAssistant)
	for _, f := range fragments {
		msg.Ingest(f)
	}
	stats := model.NewStatistics()
	stats.Finalize(12)
	msg.Finalize(stats)
	return msg
}

func sample() storage.Transcript {
	return storage.Transcript{
		ID:      "sess_test",
		Title:   "Hello World in Python",
		Model:   "qwen3:8b",
		Created: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Updated: time.Date(2025, 1, 2, 3, 5, 0, 0, time.UTC),
		Messages: []*model.Message{
			model.NewTextMessage(model.RoleUser, "How do I print hello in Python?"),
			reply("<think>", "They want print.", "</think>",
				"Use print:\n\n```python\nprint(\"hello\")\n```\n\nThat's it."),
		},
	}
}

// =============================================================================
// MARKDOWN
// =============================================================================

func TestMarkdown_ReasoningInDetails(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sample())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "# Hello World in Python")
	assert.Contains(t, md, "### [You]")
	assert.Contains(t, md, "### [Assistant]")
	assert.Contains(t, md, "<details><summary>think</summary>\n\nThey want print.\n\n</details>")
	assert.Contains(t, md, "```python\nprint(\"hello\")\n```")
	assert.NotContains(t, md, "<think>", "raw tags stay out of the answer")
	assert.Contains(t, md, "generator: thinkchat")
}

func TestMarkdown_UnfinishedReasoning(t *testing.T) {
	tr := sample()
	tr.Messages[1] = reply("<reasoning>still going")

	out, err := NewMarkdownExporter(nil).Export(tr)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<summary>reasoning (unfinished)</summary>")
}

func TestMarkdown_WithoutReasoningOrMetadata(t *testing.T) {
	opts := DefaultOptions()
	opts.IncludeReasoning = false
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(sample())
	require.NoError(t, err)
	md := string(out)

	assert.NotContains(t, md, "<details>")
	assert.NotContains(t, md, "They want print.")
	assert.False(t, strings.HasPrefix(md, "---"))
	assert.Contains(t, md, "### [Assistant]\n\nUse print:")
}

func TestMarkdown_YAMLInjection(t *testing.T) {
	tr := sample()
	tr.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(nil).Export(tr)
	require.NoError(t, err)

	for _, line := range strings.Split(string(out), "\n")[:8] {
		assert.False(t, strings.HasPrefix(line, "Injection:"), "newline in title must be escaped")
	}
}

func TestExport_Empty(t *testing.T) {
	for _, e := range []Exporter{NewMarkdownExporter(nil), NewHTMLExporter(nil), NewJSONExporter(nil)} {
		_, err := e.Export(storage.Transcript{ID: "x"})
		assert.True(t, errors.Is(err, ErrEmpty), "%T", e)
	}
}

// =============================================================================
// HTML
// =============================================================================

func TestHTML_HighlightsCodeAndFoldsReasoning(t *testing.T) {
	out, err := NewHTMLExporter(nil).Export(sample())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `<details class="reasoning"><summary>think</summary>`)
	assert.Contains(t, page, "They want print.")
	assert.Contains(t, page, `<div class="code-lang">python</div>`)
	assert.Contains(t, page, "style=\"", "chroma emits inline styles")
	assert.Contains(t, page, "dark-theme")
	assert.NotContains(t, page, "&lt;think&gt;")
}

func TestHTML_EscapesContent(t *testing.T) {
	tr := sample()
	tr.Messages = append(tr.Messages,
		model.NewTextMessage(model.RoleUser, "<script>alert('x')</script> and `<b>`"),
		reply("```<script>alert('xss')</script>\ncode here\n```"),
	)

	out, err := NewHTMLExporter(nil).Export(tr)
	require.NoError(t, err)
	page := string(out)

	assert.NotContains(t, page, "<script>alert")
	assert.Contains(t, page, "&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;")
	assert.Contains(t, page, `<code class="inline-code">&lt;b&gt;</code>`)
}

func TestHTML_LightTheme(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "light"
	out, err := NewHTMLExporter(opts).Export(sample())
	require.NoError(t, err)
	assert.Contains(t, string(out), `<body class="light-theme">`)
}

func TestFormatProse(t *testing.T) {
	got := formatProse("one\ntwo\n\nthree")
	assert.Equal(t, "<p>one<br>\ntwo</p>\n<p>three</p>\n", got)
	assert.Equal(t, "", formatProse("  \n "))
}

// =============================================================================
// JSON
// =============================================================================

func TestJSON_Split(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sample())
	require.NoError(t, err)

	var doc struct {
		ID       string `json:"id"`
		Messages []struct {
			Role      string  `json:"role"`
			Content   string  `json:"content"`
			Main      *string `json:"main"`
			Reasoning *string `json:"reasoning"`
			Tag       string  `json:"reasoning_tag"`
			Stats     *struct {
				CompletionTokens int `json:"completion_tokens"`
			} `json:"stats"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Len(t, doc.Messages, 2)

	user := doc.Messages[0]
	assert.Equal(t, "user", user.Role)
	assert.Nil(t, user.Reasoning)
	assert.Nil(t, user.Stats)

	asst := doc.Messages[1]
	assert.True(t, strings.HasPrefix(asst.Content, "<think>They want print.</think>"))
	require.NotNil(t, asst.Reasoning)
	assert.Equal(t, "They want print.", *asst.Reasoning)
	assert.Equal(t, "think", asst.Tag)
	require.NotNil(t, asst.Main)
	assert.True(t, strings.HasPrefix(*asst.Main, "Use print:"))
	require.NotNil(t, asst.Stats)
	assert.Equal(t, 12, asst.Stats.CompletionTokens)
}

// =============================================================================
// FILES
// =============================================================================

func TestExportToFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "out")

	path, err := ExportToFile(sample(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, ".md"))
	assert.Contains(t, filepath.Base(path), "conversation_Hello_World_in_Python_")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Hello World in Python")
}

func TestForFormat(t *testing.T) {
	for format, ext := range map[string]string{"md": ".md", "Markdown": ".md", "html": ".html", "json": ".json"} {
		e, err := ForFormat(format, nil)
		require.NoError(t, err, format)
		assert.Equal(t, ext, e.FileExtension())
	}
	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/b:c", "a-b-c"},
		{"hello world", "hello_world"},
		{"", "conversation"},
		{"tab\there", "tab_here"},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// =============================================================================
// MIRROR
// =============================================================================

func plainTheme(t *testing.T) *styles.Theme {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	return styles.NewTheme(styles.NewRenderer(&bytes.Buffer{}), styles.ModeDark)
}

func TestFormatMirror(t *testing.T) {
	theme := plainTheme(t)

	tests := []struct {
		name string
		msg  *model.Message
		want string
	}{
		{
			name: "user",
			msg:  model.NewTextMessage(model.RoleUser, "  hi there \n"),
			want: "\n[USER]\nhi there\n",
		},
		{
			name: "assistant with reasoning",
			msg:  reply("<thinking>\nstep one\n</thinking>\n\nThe answer."),
			want: "\n[ASSISTANT]\n<thinking>\nstep one\nThe answer.\n",
		},
		{
			name: "assistant without main text",
			msg:  reply("<think>only thoughts"),
			want: "\n[ASSISTANT]\n<think>\nonly thoughts\n<think>only thoughts\n",
		},
		{
			name: "system",
			msg:  model.NewTextMessage(model.RoleSystem, "Be terse."),
			want: "\n[SYSTEM]\nBe terse.\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatMirror(theme, tc.msg))
		})
	}
}

func TestMirror_Writer(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	Mirror(&buf, model.NewTextMessage(model.RoleTool, "result"))
	Mirror(&buf, nil)
	assert.Equal(t, "\n[TOOL]\nresult\n", buf.String())
}
