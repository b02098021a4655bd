// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"encoding/json"
)

// EmbedInput is the "input" field of an embed request: either a single string
// or a list of strings. The server answers with one vector per string.
type EmbedInput struct {
	texts  []string
	single bool
}

// SingleInput embeds one string; it is sent as a bare JSON string.
func SingleInput(text string) EmbedInput {
	return EmbedInput{texts: []string{text}, single: true}
}

// MultiInput embeds a batch; it is sent as a JSON array even for one element.
func MultiInput(texts ...string) EmbedInput {
	return EmbedInput{texts: append([]string(nil), texts...)}
}

// Texts returns the inputs in order.
func (in EmbedInput) Texts() []string {
	return in.texts
}

// Len is the number of vectors the server should return.
func (in EmbedInput) Len() int {
	return len(in.texts)
}

// MarshalJSON implements json.Marshaler.
func (in EmbedInput) MarshalJSON() ([]byte, error) {
	if in.single {
		return json.Marshal(in.texts[0])
	}
	if in.texts == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(in.texts)
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *EmbedInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*in = SingleInput(s)
		return nil
	}
	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return err
	}
	*in = EmbedInput{texts: texts}
	return nil
}
