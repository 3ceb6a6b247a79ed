package extract

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	MIMEText = "text/plain"
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var extensionTypes = map[string]string{
	".txt":  MIMEText,
	".text": MIMEText,
	".md":   MIMEText,
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
}

// Allowed reports whether mimeType can be uploaded.
func Allowed(mimeType string) bool {
	switch mimeType {
	case MIMEText, MIMEPDF, MIMEDOCX:
		return true
	}
	return false
}

// ResolveType picks the upload type from the declared Content-Type, falling
// back to the file extension when the declared one is missing or generic.
func ResolveType(declared, fileName string) (string, error) {
	if declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			if Allowed(mediaType) {
				return mediaType, nil
			}
			if mediaType != "application/octet-stream" {
				return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
			}
		}
	}
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(fileName))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, fileName)
}

// MatchesContent checks the first bytes of an upload against its resolved type.
// docx files are zip containers and sniff as application/zip.
func MatchesContent(mimeType string, head []byte) bool {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	switch mimeType {
	case MIMEText:
		return sniffed == "text/plain"
	case MIMEPDF:
		return sniffed == "application/pdf"
	case MIMEDOCX:
		return sniffed == "application/zip"
	}
	return false
}
