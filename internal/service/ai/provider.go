package ai

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Provider is a text-rewriting backend. Implementations must return a single
// structured result; partial output is never honored.
type Provider interface {
	Rewrite(ctx context.Context, req Request) (*Result, error)
}

// Request is one oracle call.
type Request struct {
	SystemInstruction string
	UserContent       string
	// ResponseSchema describes the expected payload; RewriteSchema() is used when nil.
	ResponseSchema *schema.ToolInfo
}

// Result is the oracle payload.
type Result struct {
	RewrittenText string   `json:"rewrittenText"`
	Changes       []Change `json:"changes"`
}

// Change is an edit the oracle claims it made. Offsets are self-reported and unverified.
type Change struct {
	Original    string `json:"original"`
	Paraphrased string `json:"paraphrased"`
	Kind        string `json:"kind"`
	StartIndex  int    `json:"startIndex"`
	EndIndex    int    `json:"endIndex"`
}
