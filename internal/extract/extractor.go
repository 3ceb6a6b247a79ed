// Package extract turns uploaded documents into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

var (
	// ErrExtractionUnsupported marks a known type whose extraction is not implemented.
	ErrExtractionUnsupported = errors.New("text extraction is not supported for this file type yet, please upload a plain-text (.txt) file")
	ErrUnsupportedType       = errors.New("unsupported file type")
	ErrEmptyDocument         = errors.New("file has no readable text content")
)

// Extractor reads stored uploads through eino's file loader.
type Extractor struct {
	loader *file.FileLoader
}

func NewExtractor(ctx context.Context) (*Extractor, error) {
	parserExt, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Extractor{loader: loader}, nil
}

// Extract returns the text content of the file at path.
func (e *Extractor) Extract(ctx context.Context, path, mimeType string) (string, error) {
	switch mimeType {
	case MIMEText:
	case MIMEPDF, MIMEDOCX:
		return "", ErrExtractionUnsupported
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(content)
	}
	if builder.Len() == 0 {
		return "", ErrEmptyDocument
	}
	return builder.String(), nil
}
