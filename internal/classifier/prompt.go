package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"iplist/internal/resolver"
)

const maxAnswerTokens = 50

func buildPrompt(domain string, categories []string, hint *resolver.Result, page string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n", domain)
	if hint != nil && !hint.Empty() {
		fmt.Fprintf(&b, "Resolved addresses: %s\n", strings.Join(append(append([]string{}, hint.IP4...), hint.IP6...), ", "))
	}
	basis := "the domain name"
	if page = strings.TrimSpace(page); page != "" {
		fmt.Fprintf(&b, "\nContext from page content for %s:\n%s\n", domain, page)
		basis = "this context and the domain name"
	}
	fmt.Fprintf(&b, "\nBased on %s, which of these categories fits best: [%s]? ", basis, strings.Join(categories, ", "))
	b.WriteString("Answer ONLY with the name of the category from the list, without explanation.")
	return b.String()
}

// parseAnswer extracts the label from free text or a {"category": "..."} object.
func parseAnswer(raw string) string {
	answer := strings.TrimSpace(raw)
	answer = strings.TrimPrefix(answer, "```json")
	answer = strings.TrimPrefix(answer, "```")
	answer = strings.TrimSuffix(answer, "```")
	answer = strings.TrimSpace(answer)

	if strings.HasPrefix(answer, "{") {
		var obj struct {
			Category string `json:"category"`
		}
		if err := json.Unmarshal([]byte(answer), &obj); err == nil {
			answer = obj.Category
		}
	}
	return strings.Trim(strings.TrimSpace(answer), "\"'`.!,;: \t\r\n")
}
