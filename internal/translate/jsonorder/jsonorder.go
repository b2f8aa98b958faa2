// Package jsonorder holds small JSON helpers shared by all three provider
// translators: deterministic tool-argument encoding/decoding and the
// strict-JSON-schema compatibility walk used by the OpenAI translator.
package jsonorder

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// StringifyArguments renders a tool-call arguments object as a compact JSON
// string with keys sorted recursively, as required by the determinism
// contract for provider wire payloads that carry arguments as a string
// (OpenAI function_call.arguments, OpenRouter tool_calls[].function.arguments).
func StringifyArguments(args json.RawMessage) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return "", fmt.Errorf("jsonorder: arguments are not valid JSON: %w", err)
	}
	sorted, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(sorted), nil
}

// ParseArguments parses a provider-supplied arguments string into a
// canonical JSON value. If the string is not valid JSON, ok is false and
// the caller is expected to fall back to storing it as a JSON string value
// plus a warning, per the translators' lossy-conversion policy.
func ParseArguments(raw string) (value json.RawMessage, ok bool) {
	if raw == "" {
		return json.RawMessage(`{}`), true
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	reencoded, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return json.RawMessage(reencoded), true
}

// ArgumentsAsJSONString wraps a raw provider arguments string as a JSON
// string value, used when ParseArguments fails and the translator must
// still preserve the original text without losing it silently.
func ArgumentsAsJSONString(raw string) (json.RawMessage, error) {
	return json.Marshal(raw)
}

// IsStrictCompatible reports whether a JSON Schema (as raw bytes) satisfies
// OpenAI's "strict" function-calling constraint: every object schema has
// additionalProperties:false and required equal to exactly its declared
// property keys, recursively, with no anyOf/oneOf/allOf union anywhere.
func IsStrictCompatible(schema json.RawMessage) bool {
	if len(schema) == 0 {
		return false
	}
	return isStrictCompatibleNode(gjson.ParseBytes(schema))
}

func isStrictCompatibleNode(node gjson.Result) bool {
	if !node.IsObject() {
		// Schema nodes that are not JSON objects (e.g. a boolean schema) are
		// strict-compatible by construction. Object nodes of a scalar type,
		// such as a bare {"type":"string"} leaf, pass the checks below; only
		// object/array containers carry the additionalProperties/required
		// constraints.
		return true
	}

	if node.Get("anyOf").Exists() || node.Get("oneOf").Exists() || node.Get("allOf").Exists() {
		return false
	}

	schemaType := node.Get("type").String()
	if schemaType == "object" || (schemaType == "" && node.Get("properties").Exists()) {
		if !node.Get("additionalProperties").Exists() || node.Get("additionalProperties").Bool() {
			return false
		}

		properties := node.Get("properties")
		propertyKeys := make(map[string]struct{})
		ok := true
		if properties.Exists() {
			properties.ForEach(func(key, value gjson.Result) bool {
				propertyKeys[key.String()] = struct{}{}
				if !isStrictCompatibleNode(value) {
					ok = false
					return false
				}
				return true
			})
		}
		if !ok {
			return false
		}

		required := node.Get("required")
		requiredKeys := make(map[string]struct{})
		if required.IsArray() {
			for _, r := range required.Array() {
				requiredKeys[r.String()] = struct{}{}
			}
		}
		if len(requiredKeys) != len(propertyKeys) {
			return false
		}
		for key := range propertyKeys {
			if _, ok := requiredKeys[key]; !ok {
				return false
			}
		}
	}

	if schemaType == "array" {
		items := node.Get("items")
		if items.Exists() && !isStrictCompatibleNode(items) {
			return false
		}
	}

	return true
}
