package editor

import "strings"

// buffer is the editable text of one open file. Buffers outlive tab switches
// so the cursor survives.
type buffer struct {
	path     string
	content  string
	language string
	cursor   int
}

func newBuffer(path, name, content string) *buffer {
	return &buffer{path: path, content: content, language: Language(name)}
}

func (b *buffer) Cursor() int { return b.cursor }

// Lines returns the number of lines, counting an empty buffer as one.
func (b *buffer) Lines() int {
	return strings.Count(b.content, "\n") + 1
}

// SetCursor moves the cursor, clamped to the content.
func (b *buffer) SetCursor(offset int) {
	b.cursor = max(0, min(offset, len(b.content)))
}

// setContent replaces the text and keeps the cursor in range.
func (b *buffer) setContent(content string) {
	b.content = content
	b.SetCursor(b.cursor)
}
