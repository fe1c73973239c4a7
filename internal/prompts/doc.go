// Package prompts contains the LLM prompt templates Hearth sends to
// models. Prompt text is Go code rather than config files because it is
// program logic: templates use interpolation, benefit from compile-time
// embedding, and can be validated by tests.
package prompts
