// Package textutil provides Unicode-aware text helpers shared by the
// splitter, the outline reducer, the fallback factory, and the archive
// writer: word sets and Jaccard similarity, sentence spans, rune-safe
// truncation, and filename sanitization.
//
// Text is NFC-normalized before tokenizing so that visually identical
// Cyrillic input (composed vs decomposed "й") compares equal.
package textutil
