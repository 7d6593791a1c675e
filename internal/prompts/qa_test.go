package prompts

import (
	"strings"
	"testing"
)

func TestCondenseQuestionPrompt(t *testing.T) {
	history := []Turn{
		{Question: "What is the talk about?", Answer: "Go concurrency."},
		{Question: "Who gives it?", Answer: "Rob Pike."},
	}
	got := CondenseQuestionPrompt(history, "What did he say about channels?")

	want := "Human: What is the talk about?\nAssistant: Go concurrency.\nHuman: Who gives it?\nAssistant: Rob Pike.\n"
	if !strings.Contains(got, want) {
		t.Errorf("history not rendered in order:\n%s", got)
	}
	if !strings.HasSuffix(got, "Follow Up Input: What did he say about channels?\nStandalone question:") {
		t.Errorf("prompt should end with the follow up question:\n%s", got)
	}
}

func TestAnswerPrompt(t *testing.T) {
	got := AnswerPrompt("Go Concurrency Patterns",
		[]string{"video title: Go Concurrency Patterns", "channels are typed conduits"},
		"What are channels?")

	for _, want := range []string{
		`from the video "Go Concurrency Patterns"`,
		"video title: Go Concurrency Patterns\n\nchannels are typed conduits",
		"Question: What are channels?\nHelpful Answer:",
		"don't know",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
