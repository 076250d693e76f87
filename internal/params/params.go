// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package params

import (
	"strings"

	"github.com/jeranaias/thinkchat/internal/ollama"
)

// DefaultIcon is the avatar given to models without a stored icon.
const DefaultIcon = "🤖"

// Params is the on-disk parameter record for one model family: the
// sampling options plus the avatar icon.
type Params struct {
	ollama.Options
	Icon string `json:"icon"`
}

// Builtin returns the defaults written for a model seen for the first time.
func Builtin() Params {
	return Params{
		Options: ollama.Options{
			Temperature:   0.7,
			TopK:          40,
			TopP:          0.9,
			TypicalP:      0.4,
			NumCtx:        8000,
			NumPredict:    256,
			RepeatLastN:   128,
			RepeatPenalty: 1.0,
			Mirostat:      0,
			MirostatEta:   0.1,
			MirostatTau:   4.0,
		},
		Icon: DefaultIcon,
	}
}

// ModelKey returns the storage key for a model name: everything before the
// first ':'. Path separators are replaced so names like "hf.co/org/model"
// stay inside the store directory.
func ModelKey(model string) string {
	key, _, _ := strings.Cut(model, ":")
	return strings.NewReplacer("/", "_", `\`, "_").Replace(key)
}

// =============================================================================
// RANGES
// =============================================================================

// Range is the accepted interval for one numeric parameter.
type Range struct {
	Name     string
	Min, Max float64
	Step     float64
}

// Ranges lists the adjustable parameters in display order, with the bounds
// the settings sliders use.
var Ranges = []Range{
	{Name: "temperature", Min: 0, Max: 2.5, Step: 0.01},
	{Name: "top_k", Min: 0, Max: 100, Step: 1},
	{Name: "top_p", Min: 0.01, Max: 1, Step: 0.01},
	{Name: "typical_p", Min: 0, Max: 1, Step: 0.01},
	{Name: "num_ctx", Min: 1000, Max: 128000, Step: 1000},
	{Name: "num_predict", Min: -1, Max: 2048, Step: 1},
	{Name: "repeat_last_n", Min: 128, Max: 4096, Step: 128},
	{Name: "repeat_penalty", Min: 0.1, Max: 2.0, Step: 0.01},
	{Name: "mirostat", Min: 0, Max: 2, Step: 1},
	{Name: "mirostat_eta", Min: 0, Max: 1, Step: 0.01},
	{Name: "mirostat_tau", Min: 0, Max: 10, Step: 0.1},
}

// Validate clamps every option into its range. typical_p is additionally
// capped at top_p.
func Validate(o ollama.Options) ollama.Options {
	o.Temperature = clampF(o.Temperature, 0, 2.5)
	o.TopK = clampI(o.TopK, 0, 100)
	o.TopP = clampF(o.TopP, 0.01, 1)
	o.TypicalP = clampF(o.TypicalP, 0, o.TopP)
	o.NumCtx = clampI(o.NumCtx, 1000, 128000)
	o.NumPredict = clampI(o.NumPredict, -1, 2048)
	o.RepeatLastN = clampI(o.RepeatLastN, 128, 4096)
	o.RepeatPenalty = clampF(o.RepeatPenalty, 0.1, 2.0)
	o.Mirostat = clampI(o.Mirostat, 0, 2)
	o.MirostatEta = clampF(o.MirostatEta, 0, 1)
	o.MirostatTau = clampF(o.MirostatTau, 0, 10)
	return o
}

func clampF(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func clampI(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
