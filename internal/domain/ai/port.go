package ai

import "context"

// Request is one chat-style completion: a system instruction, a single user
// message and a cap on generated tokens.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Client is any provider able to answer a Request with generated text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
