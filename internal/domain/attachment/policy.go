// Package attachment holds the local rules applied to bitable attachments
// before they are transferred: naming, type filtering, MIME mapping and the
// download scope token.
package attachment

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMIMEType is used for extensions missing from the MIME table
const DefaultMIMEType = "application/pdf"

// Policy decides which files may be transferred and how they are labelled
type Policy struct {
	supported map[string]bool
	mimeTypes map[string]string
}

// DefaultSupportedExtensions are the document types accepted by the approval template
var DefaultSupportedExtensions = []string{"pdf", "doc", "docx"}

// DefaultMIMETypes maps supported extensions to content types
var DefaultMIMETypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// NewPolicy creates a policy. Empty arguments fall back to the defaults.
func NewPolicy(supportedExtensions []string, mimeTypes map[string]string) *Policy {
	if len(supportedExtensions) == 0 {
		supportedExtensions = DefaultSupportedExtensions
	}
	if len(mimeTypes) == 0 {
		mimeTypes = DefaultMIMETypes
	}

	p := &Policy{
		supported: make(map[string]bool, len(supportedExtensions)),
		mimeTypes: make(map[string]string, len(mimeTypes)),
	}
	for _, ext := range supportedExtensions {
		p.supported[normalizeExt(ext)] = true
	}
	for ext, mime := range mimeTypes {
		p.mimeTypes[normalizeExt(ext)] = mime
	}
	return p
}

// DisplayName returns the stored name, or document_<index>.pdf when it is
// empty. index is 1-based.
func DisplayName(storedName string, index int) string {
	if storedName != "" {
		return storedName
	}
	return fmt.Sprintf("document_%d.pdf", index)
}

// Extension returns the lower-cased text after the last dot, "" when there is none
func Extension(fileName string) string {
	ext := filepath.Ext(fileName)
	if ext == "" {
		return ""
	}
	return normalizeExt(ext)
}

// Supports reports whether the file's extension is accepted
func (p *Policy) Supports(fileName string) bool {
	ext := Extension(fileName)
	return ext != "" && p.supported[ext]
}

// MIMEType returns the content type for the file's extension
func (p *Policy) MIMEType(fileName string) string {
	if mime, ok := p.mimeTypes[Extension(fileName)]; ok {
		return mime
	}
	return DefaultMIMEType
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
