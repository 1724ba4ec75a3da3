// Package course parses raw course documents into structured metadata
// and overlapping, context-prefixed text chunks ready for embedding.
package course

import "fmt"

// Course is the structured metadata parsed from a document header,
// together with the ordered lessons found in the body. Courses are
// immutable after parsing.
type Course struct {
	Title      string
	Link       string
	Instructor string
	Lessons    []Lesson
}

// Lesson is a numbered section of a course. Number is unique within
// its course.
type Lesson struct {
	Number int
	Title  string
	Link   string
}

// Chunk is one embeddable segment of course content. Text carries the
// course/lesson context prefix so the identifying context lands in the
// vector itself. Index is monotonic per course.
type Chunk struct {
	CourseTitle  string
	LessonNumber *int
	Index        int
	Text         string
}

// FormatError reports a malformed document header, naming the field
// that is missing or unparseable. Ingestion skips the document and
// continues with the rest.
type FormatError struct {
	Field string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("course document: missing or malformed %q", e.Field)
}
