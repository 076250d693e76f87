// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jeranaias/thinkchat/internal/config"
	"github.com/jeranaias/thinkchat/internal/ollama"
	"github.com/jeranaias/thinkchat/internal/params"
	"github.com/jeranaias/thinkchat/internal/session"
	"github.com/jeranaias/thinkchat/internal/storage"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the Ollama server could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a model or conversation was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitInterrupted follows the shell convention for SIGINT
	ExitInterrupted = 130
)

// UsageError reports bad arguments or flag values.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var validation config.ValidateErrors
	var tty *TTYRequiredError
	switch {
	case errors.As(err, &usage), errors.As(err, &tty),
		errors.Is(err, session.ErrEmptyPrompt), errors.Is(err, session.ErrNoModel),
		errors.Is(err, params.ErrNoModel):
		return ExitUsageError
	case errors.As(err, &validation):
		return ExitConfigError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case ollama.IsNotRunning(err):
		return ExitNetworkError
	case ollama.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case ollama.IsModelNotFound(err), errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}

// hint returns a one-line suggestion for errors users commonly hit.
func hint(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Is Ollama running? Start it with 'ollama serve' or set ollama.auto_start = true."
	case ollama.IsModelNotFound(err):
		return "Pull the model with 'ollama pull <model>' or list local models with 'thinkchat models'."
	case errors.Is(err, storage.ErrAmbiguous):
		return "Use more characters of the conversation ID."
	case errors.Is(err, storage.ErrNotFound):
		return "List saved conversations with 'thinkchat history list'."
	default:
		return ""
	}
}
