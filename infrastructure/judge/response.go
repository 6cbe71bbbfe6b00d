package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/papernavigator/papernav/internal/domain"
)

// judgeResponse is the JSON object a judge model is asked to return.
// Winner is kept raw so both the letter form ("A", "B", "draw") and the
// numeric form (1, 2, 0) can be decoded.
type judgeResponse struct {
	Winner     json.RawMessage `json:"winner" validate:"required"`
	Confidence *float64        `json:"confidence" validate:"omitempty,min=0,max=1"`
	Reasoning  string          `json:"reasoning" validate:"max=4000"`
	// Reason is the older field name for Reasoning.
	Reason string `json:"reason" validate:"max=4000"`
}

// defaultConfidence is assumed when a reply carries no confidence field.
const defaultConfidence = 1.0

// parseJudgment extracts, decodes and validates a judge reply. All
// failures wrap domain.ErrInvalidJudgment.
func parseJudgment(v *validator.Validate, response string) (domain.Judgment, error) {
	raw := extractJSON(response)
	if raw == "" {
		return domain.Judgment{}, fmt.Errorf("%w: no JSON object in reply (%d chars)",
			domain.ErrInvalidJudgment, len(response))
	}

	var r judgeResponse
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.Judgment{}, fmt.Errorf("%w: decode reply: %v", domain.ErrInvalidJudgment, err)
	}
	if err := v.Struct(r); err != nil {
		return domain.Judgment{}, fmt.Errorf("%w: %v", domain.ErrInvalidJudgment, err)
	}

	verdict, err := parseWinner(r.Winner)
	if err != nil {
		return domain.Judgment{}, err
	}

	j := domain.Judgment{
		Verdict:    verdict,
		Confidence: defaultConfidence,
		Reasoning:  strings.TrimSpace(r.Reasoning),
	}
	if r.Confidence != nil {
		j.Confidence = *r.Confidence
	}
	if j.Reasoning == "" {
		j.Reasoning = strings.TrimSpace(r.Reason)
	}
	return j, nil
}

func parseWinner(raw json.RawMessage) (domain.Verdict, error) {
	raw = bytes.TrimSpace(raw)
	if string(raw) == "null" {
		return domain.VerdictDraw, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "a", "1", "paper a":
			return domain.VerdictA, nil
		case "b", "2", "paper b":
			return domain.VerdictB, nil
		case "draw", "tie", "0", "none":
			return domain.VerdictDraw, nil
		}
		return 0, fmt.Errorf("%w: unknown winner %q", domain.ErrInvalidJudgment, s)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n {
		case 1:
			return domain.VerdictA, nil
		case 2:
			return domain.VerdictB, nil
		case 0:
			return domain.VerdictDraw, nil
		}
		return 0, fmt.Errorf("%w: unknown winner %v", domain.ErrInvalidJudgment, n)
	}

	return 0, fmt.Errorf("%w: winner has unsupported type: %s", domain.ErrInvalidJudgment, raw)
}

// extractJSON finds the first JSON object in a model reply. It understands
// fenced code blocks and otherwise scans for a balanced brace pair,
// skipping braces inside string literals.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if nl := strings.IndexByte(response[start:], '\n'); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return ""
}
