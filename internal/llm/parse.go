package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Control characters other than tab and newline break json.Unmarshal and show
// up in model output often enough to strip up front.
var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

type rawEvaluation struct {
	Answer          string          `json:"answer"`
	ConditionResult *bool           `json:"condition_result"`
	ConfidenceScore *float64        `json:"confidence_score"`
	Evidence        string          `json:"evidence"`
	PageReferences  json.RawMessage `json:"page_references"`
}

// ParseEvaluation turns a raw model response into an Evaluation. The model is
// instructed to emit bare JSON but responses wrapped in markdown fences or
// surrounded by prose are recovered.
func ParseEvaluation(responseText string) (Evaluation, error) {
	text := controlChars.ReplaceAllString(strings.TrimSpace(responseText), "")
	text = stripMarkdownFence(text)

	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end <= start {
			return Evaluation{}, errors.New("no JSON object in response")
		}
		text = controlChars.ReplaceAllString(text[start:end+1], "")
	}

	var raw rawEvaluation
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		// Some models emit single-quoted pseudo-JSON.
		fixed := strings.ReplaceAll(text, "'", `"`)
		if err2 := json.Unmarshal([]byte(fixed), &raw); err2 != nil {
			return Evaluation{}, fmt.Errorf("invalid JSON in response: %w", err)
		}
	}

	eval := Evaluation{
		Answer:     raw.Answer,
		Verdict:    raw.ConditionResult,
		Confidence: raw.ConfidenceScore,
		Evidence:   raw.Evidence,
		Pages:      coercePageRefs(raw.PageReferences),
	}
	if eval.Confidence != nil {
		clamped := clamp01(*eval.Confidence)
		eval.Confidence = &clamped
	}
	return eval, nil
}

func stripMarkdownFence(text string) string {
	if idx := strings.Index(text, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if idx := strings.Index(text, "```"); idx != -1 {
		start := idx + 3
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	return text
}

// coercePageRefs accepts integers, floats, and strings like "page 3" since
// models ignore the integers-only instruction regularly.
func coercePageRefs(raw json.RawMessage) []int {
	if len(raw) == 0 {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	var pages []int
	for _, entry := range entries {
		var n float64
		if err := json.Unmarshal(entry, &n); err == nil {
			if n > 0 {
				pages = append(pages, int(n))
			}
			continue
		}
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			if p := digitsFrom(s); p > 0 {
				pages = append(pages, p)
			}
		}
	}
	return pages
}

func digitsFrom(s string) int {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
