package chat

import "fmt"

// systemPrompt steers the model toward course-material answers and
// correct tool selection. Retrieval is limited to a single round per
// query; the synthesis call offers no tools.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with access to tools for course information.

Tool usage:
- Course outline questions (course structure, lesson lists, overview): use get_course_outline.
- Course content questions (specific material, explanations from lessons): use search_course_content.
- General knowledge questions: answer from existing knowledge without tools.
- One retrieval round per query. After tool results arrive, synthesize the final answer.
- If a tool yields no results, say so clearly without inventing content.

Responses must be brief, clear and educational. Provide the direct answer only: no meta-commentary, no mention of tools or search.`

// instructionTemplate wraps the raw user question before it is sent to
// the model. Session history records this wrapped form, exactly as
// sent, not the bare question.
const instructionTemplate = "Answer this question about course materials: %s"

// Instruction returns the model-facing instruction for a user question.
func Instruction(question string) string {
	return fmt.Sprintf(instructionTemplate, question)
}

// historyHeader introduces prior exchanges inside the system text.
const historyHeader = "Previous conversation:"

// systemWithHistory appends formatted prior exchanges to the system
// prompt; with no history the prompt is returned unchanged.
func systemWithHistory(history string) string {
	if history == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\n" + historyHeader + "\n" + history
}
