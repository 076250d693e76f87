// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package params

import (
	"fmt"
	"strconv"

	"github.com/jeranaias/thinkchat/internal/ollama"
)

// field binds a parameter name to its slot in ollama.Options.
type field struct {
	get func(o *ollama.Options) float64
	set func(o *ollama.Options, v float64)
	isInt bool
}

var fields = map[string]field{
	"temperature":    floatField(func(o *ollama.Options) *float64 { return &o.Temperature }),
	"top_k":          intField(func(o *ollama.Options) *int { return &o.TopK }),
	"top_p":          floatField(func(o *ollama.Options) *float64 { return &o.TopP }),
	"typical_p":      floatField(func(o *ollama.Options) *float64 { return &o.TypicalP }),
	"num_ctx":        intField(func(o *ollama.Options) *int { return &o.NumCtx }),
	"num_predict":    intField(func(o *ollama.Options) *int { return &o.NumPredict }),
	"repeat_last_n":  intField(func(o *ollama.Options) *int { return &o.RepeatLastN }),
	"repeat_penalty": floatField(func(o *ollama.Options) *float64 { return &o.RepeatPenalty }),
	"mirostat":       intField(func(o *ollama.Options) *int { return &o.Mirostat }),
	"mirostat_eta":   floatField(func(o *ollama.Options) *float64 { return &o.MirostatEta }),
	"mirostat_tau":   floatField(func(o *ollama.Options) *float64 { return &o.MirostatTau }),
}

func floatField(p func(*ollama.Options) *float64) field {
	return field{
		get: func(o *ollama.Options) float64 { return *p(o) },
		set: func(o *ollama.Options, v float64) { *p(o) = v },
	}
}

func intField(p func(*ollama.Options) *int) field {
	return field{
		get:   func(o *ollama.Options) float64 { return float64(*p(o)) },
		set:   func(o *ollama.Options, v float64) { *p(o) = int(v) },
		isInt: true,
	}
}

// Get returns the named parameter formatted for display.
func Get(o ollama.Options, name string) (string, error) {
	f, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("unknown parameter %q", name)
	}
	v := f.get(&o)
	if f.isInt {
		return strconv.Itoa(int(v)), nil
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Set parses value and stores it in the named parameter. The result is not
// clamped; pass it through Validate before use.
func Set(o *ollama.Options, name, value string) error {
	f, ok := fields[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	if f.isInt {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", name, value)
		}
		f.set(o, float64(n))
		return nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: expected a number, got %q", name, value)
	}
	f.set(o, v)
	return nil
}
