// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package segment

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		main         string
		reasoning    string
		hasReasoning bool
		open         bool
		tag          Tag
	}{
		{
			name: "no tag",
			text: "  Hello world \n",
			main: "Hello world",
		},
		{
			name:         "reasoning then answer",
			text:         "<think>\nabc\n</think>\n\ndef",
			main:         "def",
			reasoning:    "abc",
			hasReasoning: true,
			tag:          TagThink,
		},
		{
			name:         "preamble kept in one-shot parse",
			text:         "Sure. <thinking>plan</thinking> Done.",
			main:         "Sure. Done.",
			reasoning:    "plan",
			hasReasoning: true,
			tag:          TagThinking,
		},
		{
			name:         "empty after end tag",
			text:         "intro <reasoning>r</reasoning>   ",
			main:         "intro",
			reasoning:    "r",
			hasReasoning: true,
			tag:          TagReasoning,
		},
		{
			name:         "unterminated block",
			text:         "<reasoning> partial thought",
			main:         "",
			reasoning:    "partial thought",
			hasReasoning: true,
			open:         true,
			tag:          TagReasoning,
		},
		{
			name:         "leftmost tag wins",
			text:         "<thinking>a</thinking><think>b</think>",
			main:         "<think>b</think>",
			reasoning:    "a",
			hasReasoning: true,
			tag:          TagThinking,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text)
			if got.Main != tc.main {
				t.Errorf("Main = %q, want %q", got.Main, tc.main)
			}
			if got.Reasoning != tc.reasoning {
				t.Errorf("Reasoning = %q, want %q", got.Reasoning, tc.reasoning)
			}
			if got.HasReasoning != tc.hasReasoning {
				t.Errorf("HasReasoning = %v, want %v", got.HasReasoning, tc.hasReasoning)
			}
			if got.InReasoning != tc.open {
				t.Errorf("InReasoning = %v, want %v", got.InReasoning, tc.open)
			}
			if got.Tag != tc.tag {
				t.Errorf("Tag = %v, want %v", got.Tag, tc.tag)
			}
			if !got.HasMain {
				t.Error("HasMain should always be set by Parse")
			}
		})
	}
}

// =============================================================================
// FUZZING
// =============================================================================

// FuzzIngest checks that no input panics and that where the input is cut
// never changes the outcome.
func FuzzIngest(f *testing.F) {
	f.Add("<think>abc</think>def", uint8(3))
	f.Add("<reasoning>partial", uint8(1))
	f.Add("hello <thinking>x</thinking>y", uint8(7))
	f.Add("</think><think>", uint8(2))
	f.Add("\xff\xfe<think>\x00", uint8(5))

	f.Fuzz(func(t *testing.T, text string, step uint8) {
		size := int(step%16) + 1

		var sg Segmenter
		for start := 0; start < len(text); start += size {
			end := start + size
			if end > len(text) {
				end = len(text)
			}
			sg.Ingest(text[start:end])
		}

		if sg.Content() != text {
			t.Fatalf("Content() = %q, want %q", sg.Content(), text)
		}
		if got, want := sg.Snapshot(), Segment(text); got != want {
			t.Fatalf("chunked %+v != whole %+v", got, want)
		}
		Parse(text)
	})
}
