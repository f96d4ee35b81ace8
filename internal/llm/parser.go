package llm

import (
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON object out of model output. Markdown code fences
// and prose around the object are tolerated.
func ExtractJSON(output string) (string, error) {
	output = stripFences(strings.TrimSpace(output))

	start := strings.Index(output, "{")
	end := strings.LastIndex(output, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model output")
	}
	return output[start : end+1], nil
}

func stripFences(output string) string {
	if !strings.HasPrefix(output, "```") || !strings.HasSuffix(output, "```") {
		return output
	}
	start := strings.Index(output, "\n") + 1
	end := strings.LastIndex(output, "\n```")
	if start > 0 && end > start {
		return output[start:end]
	}
	return strings.Trim(output, "`")
}
