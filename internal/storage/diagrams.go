package storage

import (
	"errors"
	"strings"
)

// MaxDiagramBytes bounds inline SVG payloads.
const MaxDiagramBytes = 512 << 10

var ErrInvalidDiagram = errors.New("diagram must be an inline SVG document")

// DiagramKey is where the diagram for a question fingerprint lives.
func DiagramKey(fingerprint string) string {
	return "diagrams/" + fingerprint + ".svg"
}

// PutDiagram stores svg under the fingerprint's key and returns the key as
// the question's diagram reference.
func PutDiagram(bs BlobStore, fingerprint, svg string) (string, error) {
	svg = strings.TrimSpace(svg)
	if fingerprint == "" || svg == "" || len(svg) > MaxDiagramBytes {
		return "", ErrInvalidDiagram
	}
	head := strings.ToLower(svg[:min(len(svg), 256)])
	if !strings.HasPrefix(head, "<svg") && !(strings.HasPrefix(head, "<?xml") && strings.Contains(strings.ToLower(svg), "<svg")) {
		return "", ErrInvalidDiagram
	}
	return bs.Put(DiagramKey(fingerprint), strings.NewReader(svg))
}

// ContentType guesses the served type from the key's extension.
func ContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".svg"):
		return "image/svg+xml"
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".json"):
		return "application/json"
	}
	return "application/octet-stream"
}
