// Package normalisers provides text extraction for uploaded documents.
// Each normaliser knows how to extract plain text from specific MIME types;
// the Registry picks the highest priority match and falls back to plain text.
package normalisers
