package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
)

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// FormatDocument formats a strategy document as indented JSON
func (f *DefaultJSONFormatter) FormatDocument(doc *strategy.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// PrintDocument prints a strategy document as JSON to console
func (f *DefaultJSONFormatter) PrintDocument(doc *strategy.Document) {
	data, err := f.FormatDocument(doc)
	if err != nil {
		fmt.Printf("❌ Failed to format document: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

// WriteDocumentJSON writes a strategy document to a JSON file
func WriteDocumentJSON(doc *strategy.Document, path string) error {
	data, err := NewDefaultJSONFormatter().FormatDocument(doc)
	if err != nil {
		return err
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

// PrintDocumentJSON is a convenience function using the default formatter
func PrintDocumentJSON(doc *strategy.Document) {
	NewDefaultJSONFormatter().PrintDocument(doc)
}
