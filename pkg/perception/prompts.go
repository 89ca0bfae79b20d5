package perception

import "fmt"

// The prompts all demand a bare JSON object so parsing stays mechanical.
// CRM pages are form-heavy, so the locate prompt pushes hard toward
// stable CSS selectors before falling back to text or coordinates.

func locatePrompt(description, url string) string {
	return fmt.Sprintf(`You are looking at a screenshot of a dealership CRM page%s.

Find the element described as: %q

Respond with only a JSON object, no prose:
{"found": true, "selector": "...", "kind": "structural", "confidence": 0.0}

Rules:
- "kind" is one of "structural" (CSS selector or XPath), "text" (exact visible label), or "coordinate" ("x,y" viewport position).
- Prefer a stable CSS selector built on id or name attributes.
- Use "text" with the element's exact visible label when no stable selector is apparent.
- Use "coordinate" only as a last resort.
- If the element is not on this page, respond {"found": false}.`,
		urlClause(url), description)
}

func nextActionPrompt(goal, url string) string {
	return fmt.Sprintf(`You are operating a dealership CRM in a browser%s. The screenshot shows the current page.

Goal: %s

Decide the single next action that moves toward the goal. Respond with only a JSON object, no prose:
{"action": "click", "selector": "...", "kind": "structural", "value": "", "confidence": 0.0, "reasoning": "..."}

Rules:
- "action" is one of "click", "fill", "select", "navigate", "wait", or "verify".
- "selector" locates the element; "kind" is "structural", "text", or "coordinate" as for locating.
- "value" carries the text to type for fill, the option value for select, or the URL for navigate.
- For navigate, leave "selector" empty and put the URL in "value".
- One primitive action only. Do not plan ahead.`,
		urlClause(url), goal)
}

func verifyPrompt(taskDescription, successCriteria, url string) string {
	return fmt.Sprintf(`You are checking the outcome of an automated task in a dealership CRM%s. The screenshot shows the page after the task ran.

Task: %s
Success criteria: %s

Respond with only a JSON object, no prose:
{"complete": true, "reason": "..."}

Set "complete" to true only if the page visibly satisfies the success criteria. An error banner, an unsaved form, or an unrelated page means false.`,
		urlClause(url), taskDescription, successCriteria)
}

func urlClause(url string) string {
	if url == "" {
		return ""
	}
	return fmt.Sprintf(" (current URL: %s)", url)
}
