package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Upstream producers (key authoring tools, extraction services, OMR
// pipelines) disagree on field names and shapes for the same concepts.
// This adapter is the single place where all accepted input shapes are
// mapped onto the canonical QuestionKey/ExtractedAnswer types; the
// evaluation engine only ever sees canonical values.

// ParseQuestionKeys parses an answer-key document. It accepts a bare JSON
// array of question objects or an object wrapping one under "questions"
// or "keys".
func ParseQuestionKeys(data []byte) ([]QuestionKey, error) {
	items, err := unwrapList(data, "questions", "keys")
	if err != nil {
		return nil, fmt.Errorf("parse answer key: %w", err)
	}

	keys := make([]QuestionKey, 0, len(items))
	for i, item := range items {
		k, err := adaptQuestionKey(item)
		if err != nil {
			return nil, fmt.Errorf("answer key entry %d: %w", i, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// ParseExtractedAnswers parses an extraction result. It accepts a bare
// JSON array of answer objects or an object wrapping one under "answers"
// or "extracted_answers".
func ParseExtractedAnswers(data []byte) ([]ExtractedAnswer, error) {
	items, err := unwrapList(data, "answers", "extracted_answers")
	if err != nil {
		return nil, fmt.Errorf("parse extracted answers: %w", err)
	}

	answers := make([]ExtractedAnswer, 0, len(items))
	for i, item := range items {
		a, err := adaptExtractedAnswer(item)
		if err != nil {
			return nil, fmt.Errorf("extracted answer entry %d: %w", i, err)
		}
		answers = append(answers, a)
	}
	return answers, nil
}

func adaptQuestionKey(obj map[string]any) (QuestionKey, error) {
	num, ok := intField(obj, "number", "question_number", "question_no", "qno")
	if !ok {
		return QuestionKey{}, fmt.Errorf("missing question number")
	}

	k := QuestionKey{
		Number:         num,
		Format:         adaptFormat(stringField(obj, "format", "question_format", "type")),
		CorrectOptions: stringListField(obj, "correct_options", "correct_answers", "correct", "answers", "answer"),
		Options:        stringMapField(obj, "options", "choices"),
		Weightages:     floatMapField(obj, "weightages", "weights", "option_weights"),
	}
	if pts, ok := floatField(obj, "max_points", "points", "marks"); ok {
		k.MaxPoints = pts
	}

	if blanks, ok := listField(obj, "blank_specs", "blanks"); ok {
		for i, b := range blanks {
			spec, err := adaptBlankSpec(b)
			if err != nil {
				return QuestionKey{}, fmt.Errorf("blank %d: %w", i, err)
			}
			k.BlankSpecs = append(k.BlankSpecs, spec)
		}
		if k.Format == "" {
			k.Format = FormatFillBlanks
		}
	}
	if k.Format == "" {
		k.Format = FormatMultipleChoice
	}
	return k, nil
}

func adaptBlankSpec(obj map[string]any) (BlankSpec, error) {
	pos, ok := intField(obj, "position", "pos", "index")
	if !ok {
		return BlankSpec{}, fmt.Errorf("missing position")
	}
	spec := BlankSpec{
		Position:        pos,
		ExpectedAnswers: stringListField(obj, "expected_answers", "expected", "accepted_answers", "answers"),
		MatchType:       adaptMatchType(stringField(obj, "match_type", "match")),
	}
	if pts, ok := floatField(obj, "points", "marks"); ok {
		spec.Points = pts
	} else {
		spec.Points = 1
	}
	return spec, nil
}

func adaptExtractedAnswer(obj map[string]any) (ExtractedAnswer, error) {
	num, ok := intField(obj, "question_number", "number", "question_no", "qno")
	if !ok {
		return ExtractedAnswer{}, fmt.Errorf("missing question number")
	}

	a := ExtractedAnswer{
		QuestionNumber:  num,
		SelectedOptions: stringListField(obj, "selected_options", "selected", "marked_options"),
		Confidence:      adaptConfidence(obj["confidence"]),
		MarkType:        stringField(obj, "mark_type", "marking"),
	}

	if blanks, ok := listField(obj, "blank_answers", "blanks"); ok {
		for i, b := range blanks {
			pos, ok := intField(b, "position", "pos", "index")
			if !ok {
				return ExtractedAnswer{}, fmt.Errorf("blank answer %d: missing position", i)
			}
			a.BlankAnswers = append(a.BlankAnswers, BlankAnswer{
				Position:   pos,
				Text:       stringField(b, "text", "answer", "value"),
				Confidence: adaptConfidence(b["confidence"]),
			})
		}
	}
	return a, nil
}

func adaptFormat(s string) QuestionFormat {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "fill_blanks", "fill_in_the_blanks", "fill-in-the-blank", "blanks":
		return FormatFillBlanks
	case "multiple_choice", "mcq", "choice", "single_choice", "multi_choice":
		return FormatMultipleChoice
	default:
		return ""
	}
}

func adaptMatchType(s string) MatchType {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "exact":
		return MatchExact
	case "contains":
		return MatchContains
	default:
		return MatchFuzzy
	}
}

// adaptConfidence accepts either the named levels or a numeric score in
// [0,1] as emitted by some extraction backends.
func adaptConfidence(v any) Confidence {
	switch t := v.(type) {
	case string:
		switch strings.TrimSpace(strings.ToLower(t)) {
		case "high":
			return ConfidenceHigh
		case "medium", "mid":
			return ConfidenceMedium
		case "low":
			return ConfidenceLow
		}
		return ""
	case float64:
		switch {
		case t >= 0.8:
			return ConfidenceHigh
		case t >= 0.5:
			return ConfidenceMedium
		default:
			return ConfidenceLow
		}
	default:
		return ""
	}
}

// unwrapList decodes either a top-level array or an object with the list
// under one of the given wrapper keys.
func unwrapList(data []byte, wrapperKeys ...string) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty document")
	}

	var raw []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		found := false
		for _, k := range wrapperKeys {
			if v, ok := obj[k]; ok {
				if err := json.Unmarshal(v, &raw); err != nil {
					return nil, fmt.Errorf("field %q: %w", k, err)
				}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no %s list found", wrapperKeys[0])
		}
	}

	items := make([]map[string]any, 0, len(raw))
	for i, r := range raw {
		var m map[string]any
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		items = append(items, m)
	}
	return items, nil
}

// listField returns a list of objects under the first matching key.
func listField(obj map[string]any, keys ...string) ([]map[string]any, bool) {
	for _, k := range keys {
		arr, ok := obj[k].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(arr))
		for _, e := range arr {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func intField(obj map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case float64:
			return int(t), true
		case string:
			var n int
			if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func floatField(obj map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := obj[k].(float64); ok {
			return f, true
		}
	}
	return 0, false
}

// stringListField accepts both a single string and an array of strings;
// empty entries are dropped.
func stringListField(obj map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch t := obj[k].(type) {
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				return nil
			}
			return []string{s}
		case []any:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
					}
				}
			}
			if len(out) == 0 {
				return nil
			}
			return out
		}
	}
	return nil
}

func stringMapField(obj map[string]any, keys ...string) map[string]string {
	for _, k := range keys {
		m, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		out := make(map[string]string, len(m))
		for key, v := range m {
			if s, ok := v.(string); ok {
				out[key] = s
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func floatMapField(obj map[string]any, keys ...string) map[string]float64 {
	for _, k := range keys {
		m, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		out := make(map[string]float64, len(m))
		for key, v := range m {
			if f, ok := v.(float64); ok {
				out[key] = f
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
