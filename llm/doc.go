// Package llm defines the language-model-provider boundary consumed by
// agent nodes. A Provider is given messages plus tool descriptors and
// returns generated text, zero or more requested tool invocations, and
// token-usage metadata. Tool execution itself lives in llm/tools; providers
// only request calls.
package llm
