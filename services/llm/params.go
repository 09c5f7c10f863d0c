// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

// GenerationParams holds optional generation settings shared by all
// provider clients. Nil pointer fields are omitted from the request so the
// provider default applies.
type GenerationParams struct {
	// Temperature controls randomness. Nil means the provider default.
	Temperature *float32

	// MaxTokens limits the response length. Nil means the client default.
	MaxTokens *int

	// TopP is nucleus sampling. Nil means the provider default.
	TopP *float32

	// Stop lists stop sequences.
	Stop []string

	// ModelOverride selects a model for this request only. Empty means the
	// model set at client construction.
	ModelOverride string
}
