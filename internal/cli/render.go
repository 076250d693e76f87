// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/segment"
	"github.com/jeranaias/thinkchat/internal/ui/styles"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer returns a glamour renderer wrapping at the terminal
// width, capped at MaxMarkdownWidth.
func newMarkdownRenderer() (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(GetTerminalWidth(), MaxMarkdownWidth)),
	)
}

// renderMarkdown returns content unchanged when r is nil or fails.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// LINE WRITER
// =============================================================================

// lineWriter remembers whether its output ends at the start of a line.
type lineWriter struct {
	w       io.Writer
	started bool
	bol     bool
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: w, bol: true}
}

// write prints styled, tracking line position through raw.
func (l *lineWriter) write(raw, styled string) {
	if raw == "" {
		return
	}
	io.WriteString(l.w, styled)
	l.started = true
	l.bol = strings.HasSuffix(raw, "\n")
}

// newline ends the current line unless it is empty.
func (l *lineWriter) newline() {
	if !l.bol {
		l.write("\n", "\n")
	}
}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// printerOptions configures a streamPrinter.
type printerOptions struct {
	// Out receives the main text.
	Out io.Writer
	// Reasoning receives the reasoning block; nil hides it. It may be Out.
	Reasoning io.Writer
	// Status shows a transient progress line while nothing visible is
	// printed; nil disables it. It must be a terminal.
	Status io.Writer
	// Markdown, when set, renders the main text once the reply is complete
	// instead of printing it as it arrives.
	Markdown *glamour.TermRenderer
	// Theme styles the reasoning text.
	Theme *styles.Theme
}

// streamPrinter prints a streaming reply to line-oriented output. It is a
// session.Sink.
//
// Snapshots are re-derived from the whole reply, so text can be taken back:
// a trailing "<thi" may turn out to be a start tag, and text before the tag
// leaves the main text once the tag is seen. Output cannot be taken back, so
// a suffix that could still become a delimiter is held until it resolves.
// Text printed before a start tag stays on screen.
type streamPrinter struct {
	opts printerOptions

	out       *lineWriter
	reasoning *lineWriter

	mainShown      string
	reasoningShown string
	reasoningOpen  bool
	reasoningDone  bool
	afterTag       bool
	status         string
}

func newStreamPrinter(opts printerOptions) *streamPrinter {
	p := &streamPrinter{opts: opts, out: newLineWriter(opts.Out)}
	if opts.Reasoning != nil {
		p.reasoning = p.out
		if opts.Reasoning != opts.Out {
			p.reasoning = newLineWriter(opts.Reasoning)
		}
	}
	return p
}

// Update implements session.Sink.
func (p *streamPrinter) Update(snap segment.Snapshot) {
	p.render(snap, false)
}

// Done implements session.Sink.
func (p *streamPrinter) Done(snap segment.Snapshot) {
	p.render(snap, true)
	p.clearStatus()

	if p.reasoningOpen && !p.reasoningDone {
		p.reasoning.newline()
		p.writeReasoning("(unfinished)\n")
	}

	if p.opts.Markdown != nil && !snap.InReasoning {
		if main := strings.TrimSpace(snap.Main); main != "" {
			p.out.newline()
			rendered := renderMarkdown(p.opts.Markdown, main)
			p.out.write(rendered, rendered)
		}
	}
	if p.out.started {
		p.out.newline()
	}
}

// Printed returns the main text shown so far.
func (p *streamPrinter) Printed() string {
	return p.mainShown
}

func (p *streamPrinter) render(snap segment.Snapshot, final bool) {
	if snap.HasReasoning {
		p.renderReasoning(snap, final)
	}
	if snap.Tag != segment.NoTag && !p.afterTag {
		// What was shown before the start tag stays on screen but is no
		// longer part of the main text.
		p.afterTag = true
		p.mainShown = ""
	}
	if snap.InReasoning {
		return
	}

	text := snap.Main
	if p.afterTag {
		text = strings.TrimLeft(text, "\n")
	} else if !final {
		text = text[:len(text)-heldBack(text, openDelimiters...)]
	}
	if p.opts.Markdown != nil {
		if !final && strings.TrimSpace(text) != "" {
			p.setStatus("writing…")
		}
		return
	}
	if text == "" || !strings.HasPrefix(text, p.mainShown) {
		return
	}
	p.clearStatus()

	if p.mainShown == "" {
		p.out.newline()
	}
	delta := text[len(p.mainShown):]
	p.out.write(delta, delta)
	p.mainShown = text
}

func (p *streamPrinter) renderReasoning(snap segment.Snapshot, final bool) {
	if p.reasoning == nil {
		if snap.InReasoning && !final {
			p.setStatus("thinking…")
		}
		return
	}
	if p.reasoningDone {
		return
	}

	if !p.reasoningOpen {
		p.clearStatus()
		p.out.newline()
		p.reasoning.newline()
		p.writeReasoning(snap.Tag.Open() + "\n")
		p.reasoningOpen = true
	}

	text := strings.TrimLeft(snap.Reasoning, "\n")
	if snap.InReasoning && !final {
		text = text[:len(text)-heldBack(text, snap.Tag.Close())]
	}
	if strings.HasPrefix(text, p.reasoningShown) {
		p.writeReasoning(text[len(p.reasoningShown):])
		p.reasoningShown = text
	}

	if !snap.InReasoning {
		p.reasoning.newline()
		p.writeReasoning(snap.Tag.Close() + "\n")
		p.reasoningDone = true
	}
}

func (p *streamPrinter) writeReasoning(s string) {
	styled := s
	if p.opts.Theme != nil {
		styled = styles.RenderLines(p.opts.Theme.Reasoning(model.RoleAssistant), s)
	}
	p.reasoning.write(s, styled)
}

// setStatus shows a transient line on the status writer. It is only drawn
// while the main output sits at the start of a line.
func (p *streamPrinter) setStatus(s string) {
	if p.opts.Status == nil || p.status == s || !p.out.bol {
		return
	}
	p.clearStatus()
	io.WriteString(p.opts.Status, s)
	p.status = s
}

func (p *streamPrinter) clearStatus() {
	if p.status == "" {
		return
	}
	io.WriteString(p.opts.Status, "\r\x1b[K")
	p.status = ""
}

// =============================================================================
// DELIMITER HOLD-BACK
// =============================================================================

var openDelimiters = func() []string {
	out := make([]string, 0, len(segment.Tags))
	for _, t := range segment.Tags {
		out = append(out, t.Open())
	}
	return out
}()

// heldBack returns the length of the longest suffix of s that is a proper
// prefix of one of delims, i.e. text that may still grow into a delimiter.
func heldBack(s string, delims ...string) int {
	longest := 0
	for _, d := range delims {
		for n := min(len(d)-1, len(s)); n > longest; n-- {
			if strings.HasSuffix(s, d[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}
