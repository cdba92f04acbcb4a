// Package payload probes and rewrites OpenAI-wire JSON bodies.
//
// DESIGN: Read paths use gjson so a probe never re-parses the whole body;
// mutations use sjson so everything untouched passes through byte-identical.
// The gateway treats payloads as opaque except for the handful of fields the
// router and hooks care about: model, task, metadata.tags, stream, user, and
// the text content used for moderation and token estimation.
package payload

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ExtractModel returns the model field, empty when absent.
func ExtractModel(body []byte) string {
	return gjson.GetBytes(body, "model").String()
}

// ExtractTask returns the embedding task field, empty when absent.
func ExtractTask(body []byte) string {
	return gjson.GetBytes(body, "task").String()
}

// ExtractUser returns the end-user identifier, empty when absent.
func ExtractUser(body []byte) string {
	return gjson.GetBytes(body, "user").String()
}

// IsStream reports whether the request asked for a streaming response.
func IsStream(body []byte) bool {
	return gjson.GetBytes(body, "stream").Bool()
}

// ExtractTags returns metadata.tags as a string slice.
func ExtractTags(body []byte) []string {
	result := gjson.GetBytes(body, "metadata.tags")
	if !result.IsArray() {
		return nil
	}
	var tags []string
	result.ForEach(func(_, value gjson.Result) bool {
		if s := value.String(); s != "" {
			tags = append(tags, s)
		}
		return true
	})
	return tags
}

// SetTags writes metadata.tags, creating the metadata object when missing.
func SetTags(body []byte, tags []string) ([]byte, error) {
	return sjson.SetBytes(body, "metadata.tags", tags)
}

// SetModel rewrites the model field, e.g. to a deployment's upstream id.
func SetModel(body []byte, model string) ([]byte, error) {
	return sjson.SetBytes(body, "model", model)
}

// Usage is token usage as reported by a backend response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ExtractUsage reads the usage block from a response body.
func ExtractUsage(body []byte) Usage {
	u := gjson.GetBytes(body, "usage")
	if !u.Exists() {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(u.Get("prompt_tokens").Int()),
		CompletionTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:      int(u.Get("total_tokens").Int()),
	}
}

// ExtractPromptText collects the client-supplied text of a request: chat
// messages, a completion prompt, or embedding input, whichever is present.
// Multimodal content parts contribute only their text fields.
func ExtractPromptText(body []byte) string {
	var parts []string

	if messages := gjson.GetBytes(body, "messages"); messages.IsArray() {
		messages.ForEach(func(_, msg gjson.Result) bool {
			if text := contentText(msg.Get("content")); text != "" {
				parts = append(parts, text)
			}
			return true
		})
	}
	if prompt := gjson.GetBytes(body, "prompt"); prompt.Exists() {
		if text := contentText(prompt); text != "" {
			parts = append(parts, text)
		}
	}
	if input := gjson.GetBytes(body, "input"); input.Exists() {
		if text := contentText(input); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n")
}

// ExtractResponseText collects assistant text from a non-streaming response:
// chat message content or legacy completion text, across all choices.
func ExtractResponseText(body []byte) string {
	var parts []string
	choices := gjson.GetBytes(body, "choices")
	choices.ForEach(func(_, choice gjson.Result) bool {
		if text := choice.Get("message.content").String(); text != "" {
			parts = append(parts, text)
		} else if text := choice.Get("text").String(); text != "" {
			parts = append(parts, text)
		}
		return true
	})
	return strings.Join(parts, "")
}

// ExtractChunkText returns the delta text carried by one streaming chunk.
func ExtractChunkText(chunk []byte) string {
	if text := gjson.GetBytes(chunk, "choices.0.delta.content"); text.Exists() {
		return text.String()
	}
	return gjson.GetBytes(chunk, "choices.0.text").String()
}

// contentText flattens a content value: plain string, array of strings, or
// array of typed parts with text fields.
func contentText(content gjson.Result) string {
	switch {
	case content.Type == gjson.String:
		return content.String()
	case content.IsArray():
		var parts []string
		content.ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.String {
				parts = append(parts, item.String())
			} else if text := item.Get("text"); text.Exists() {
				parts = append(parts, text.String())
			}
			return true
		})
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
