// Package reader paginates structured text chapters paragraph by paragraph and drives narration.
//
// # Chapters
//
// Chapters are the structured text entries of a folder in natural filename order. An optional title
// index document overrides display titles by chapter number; it never changes the order.
//
// # Content
//
// [ParseContent] turns a chapter document into a [Content] value. Documents that carry neither a
// paragraph array nor a text body parse to the explicit [Empty] variant with zero paragraphs; this is
// not an error, the chapter is flagged as malformed instead.
//
// # Narration
//
// [Engine.Narrate] speaks the current paragraph and moves on until the chapter ends, continuing into
// the next chapter when auto-advance is on. [Engine.Cancel] stops it.
package reader
