// Package rewrite validates rewrite requests, calls the oracle and turns its
// claimed edits into highlights.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rephrasego/internal/highlight"
	"rephrasego/internal/models"
	"rephrasego/internal/service/ai"
)

const DefaultLanguage = "English"

var ErrInvalidRequest = errors.New("invalid request")

// Request is a rewrite request as received from a client.
type Request struct {
	Text           string
	Mode           models.Mode
	Language       string
	CitationFormat models.CitationFormat
	StyleMatching  bool
}

// Result is the rewritten text with its highlights; Highlights is never nil.
type Result struct {
	RewrittenText string
	Highlights    []models.Highlight
}

// Service is the rewrite orchestrator.
type Service struct {
	provider ai.Provider
}

func NewService(provider ai.Provider) *Service {
	return &Service{provider: provider}
}

// Validate normalizes req and reports ErrInvalidRequest for bad input.
func Validate(req Request) (Request, error) {
	if strings.TrimSpace(req.Text) == "" {
		return req, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}
	req.Mode = models.Mode(strings.ToLower(strings.TrimSpace(string(req.Mode))))
	if !req.Mode.Valid() {
		return req, fmt.Errorf("%w: unsupported mode %q", ErrInvalidRequest, req.Mode)
	}
	req.Language = strings.TrimSpace(req.Language)
	if req.Language == "" {
		req.Language = DefaultLanguage
	}
	if req.CitationFormat == "" {
		req.CitationFormat = models.CitationAPA
	}
	if !req.CitationFormat.Valid() {
		return req, fmt.Errorf("%w: unsupported citation format %q", ErrInvalidRequest, req.CitationFormat)
	}
	return req, nil
}

// Rewrite runs the full pipeline for one request. Oracle errors are returned
// as classified by the provider and are never retried here.
func (s *Service) Rewrite(ctx context.Context, req Request) (*Result, error) {
	req, err := Validate(req)
	if err != nil {
		return nil, err
	}
	out, err := s.provider.Rewrite(ctx, ai.Request{
		SystemInstruction: BuildInstruction(req),
		UserContent:       req.Text,
		ResponseSchema:    ai.RewriteSchema(),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || strings.TrimSpace(out.RewrittenText) == "" {
		return nil, fmt.Errorf("%w: empty rewrite result", ai.ErrOracleFailure)
	}
	claims := make([]highlight.Claim, 0, len(out.Changes))
	for _, ch := range out.Changes {
		claims = append(claims, highlight.Claim{
			OriginalPhrase:  ch.Original,
			RewrittenPhrase: ch.Paraphrased,
			Kind:            models.HighlightKind(strings.ToLower(strings.TrimSpace(ch.Kind))),
			ApproxStart:     ch.StartIndex,
		})
	}
	return &Result{
		RewrittenText: out.RewrittenText,
		Highlights:    highlight.Reconstruct(out.RewrittenText, claims),
	}, nil
}
