package prompts

import (
	"fmt"
	"strings"
)

// Turn is one completed question/answer exchange in a session.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

const condenseTemplate = `Given the following conversation about a video and a follow up question,
rephrase the follow up question to be a standalone question that can be
understood without the conversation.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

// CondenseQuestionPrompt rewrites a follow-up question into a standalone
// one. Callers skip it when history is empty.
func CondenseQuestionPrompt(history []Turn, question string) string {
	var sb strings.Builder
	for _, t := range history {
		sb.WriteString("Human: ")
		sb.WriteString(t.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(t.Answer)
		sb.WriteString("\n")
	}
	return fmt.Sprintf(condenseTemplate, sb.String(), question)
}

const answerTemplate = `Use the following pieces of context from the video "%s" to answer the
question at the end. If you don't know the answer, just say that you don't
know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// AnswerPrompt returns the retrieval-augmented answer prompt. Context
// documents are separated by blank lines in retrieval order.
func AnswerPrompt(title string, context []string, question string) string {
	return fmt.Sprintf(answerTemplate, title, strings.Join(context, "\n\n"), question)
}
