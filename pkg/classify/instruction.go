package classify

import "strings"

// The instruction is fixed; only the document content varies between calls.
const (
	instructionRole = `# Role
You are a UI Feature Analyzer. You read the markup of a rendered web page and
inventory what a person looking at that page can do and what they can read.`

	instructionContext = `# Context
The markup below is the page exactly as it was rendered. Your inventory is used
by documentation generators and UI testers, so it must describe the page as a
person sees it, grouped the way a person thinks about it.`

	instructionThoughtProcess = `# Thought Process
Work through these steps before you answer:
1. Analyze Actions: find every interactive element (inputs, selects, toggles,
   checkboxes, links that act, buttons) and decide which goal each one serves.
2. Analyze Information: find every piece of static, read-only content (headings,
   labels with values, metrics, captions, branding, user details).
3. Group Information: merge static pieces that describe one fact, such as a
   metric, its label and its change, into a single statement.
4. Filter Redundancy: drop from the information every element that is already
   part of an action.
5. Format: produce the Features structure described below.`

	instructionTask = `# Task
Classify the visible content of the page into actions and information and return
them as one Features structure.`

	instructionConstraints = `# Constraints
1. STRICTLY UI-BASED: base findings only on what is visible in the rendered page.
   Ignore scripts, styles, hidden elements and metadata.
2. NO INFERENCE: do not guess at behavior that the visible content does not show.
3. GROUPING ACTIONS: every input, toggle and button that serves one goal belongs to
   exactly one action. Never split one goal into several actions. The process lists
   every step in the order a person performs it and ends with the submitting step.
4. GROUPING INFO: static elements that describe one coherent fact are combined into
   one info sentence. Never emit fragments such as a label and its value separately.
5. REDUNDANCY: an element that appears in any action's process must not appear in
   any info description, with no exception, even if it is also shown as static text.
6. NO OMISSION: if the page has no actions, actions is []. If it has no
   information, info is []. Never leave a field out and never use null.
7. CRITICAL OUTPUT RULE: output only the Features structure. No commentary, no
   markdown, no second candidate.`

	instructionOutputFormat = `# Output Format
Return ONLY the Features structure:
{"actions": [{"description": "...", "process": "..."}], "info": [{"description": "..."}]}
- actions[].description: the complete goal, for example "Sign in to the dashboard".
- actions[].process: every step in order, ending with the submit step.
- info[].description: one sentence per coherent fact.`

	instructionExamples = `# Examples
Action:
{"description": "Filter Dashboard Data by Date Range",
 "process": "Click the dropdown or input field showing '12.04.2023 - 12.05.2024' to open the date picker, select a new start and end date, and click 'Apply'."}

Information:
{"description": "The signed-in user is John Doe, a Frontend Engineer."}
{"description": "Total Views are $3,456K, up 0.43%."}
{"description": "Total Sales are reported for the period 12.04.2023 - 12.05.2024."}
{"description": "The site is branded Zenith, shown with a 'Z' logo."}

Note that the date range '12.04.2023 - 12.05.2024' appears inside the filter action,
so in a real answer it would not be repeated as information on its own.`

	contentHeader = "HTML CONTENT:\n"
)

var instructionSections = []string{
	instructionRole,
	instructionContext,
	instructionThoughtProcess,
	instructionTask,
	instructionConstraints,
	instructionOutputFormat,
	instructionExamples,
}

// BuildInstruction returns the classification instruction with content
// appended verbatim as its final segment.
func BuildInstruction(content string) string {
	var sb strings.Builder
	sb.Grow(instructionSize + len(content))
	for _, s := range instructionSections {
		sb.WriteString(s)
		sb.WriteString("\n\n")
	}
	sb.WriteString(contentHeader)
	sb.WriteString(content)
	return sb.String()
}

var instructionSize = func() int {
	n := len(contentHeader)
	for _, s := range instructionSections {
		n += len(s) + 2
	}
	return n
}()
