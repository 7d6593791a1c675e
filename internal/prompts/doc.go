// Package prompts contains the LLM prompt templates used by recap.
//
// Prompt text is Go code rather than config files because it is program logic:
// templates use fmt.Sprintf interpolation and can be validated by tests.
//
// Convention: each prompt category gets its own file (summary.go, qa.go)
// with exported functions that accept the dynamic parts and return the
// fully interpolated prompt string. The package does no chunking or
// alignment of its own; callers hand it already-bounded text.
package prompts
