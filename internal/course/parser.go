package course

import (
	"regexp"
	"strconv"
	"strings"
)

// Section is the raw content belonging to one lesson scope. Lesson is
// nil for content appearing before the first lesson marker.
type Section struct {
	Lesson *Lesson
	Text   string
}

var lessonMarker = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

const (
	headerTitle      = "Course Title:"
	headerLink       = "Course Link:"
	headerInstructor = "Course Instructor:"
	lessonLinkPrefix = "Lesson Link:"
)

// ParseDocument splits a raw course document into its header metadata
// and per-lesson content sections. The header occupies the leading
// lines as "Key: value" pairs; "Course Title" is required, link and
// instructor are optional. A missing title yields a *FormatError.
func ParseDocument(text string) (*Course, []Section, error) {
	lines := strings.Split(text, "\n")

	c := &Course{}
	i := 0
headerLoop:
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if c.Title != "" {
				i++
				break
			}
			continue
		}
		if lessonMarker.MatchString(line) {
			break
		}
		switch {
		case strings.HasPrefix(line, headerTitle):
			c.Title = strings.TrimSpace(strings.TrimPrefix(line, headerTitle))
		case strings.HasPrefix(line, headerLink):
			c.Link = strings.TrimSpace(strings.TrimPrefix(line, headerLink))
		case strings.HasPrefix(line, headerInstructor):
			c.Instructor = strings.TrimSpace(strings.TrimPrefix(line, headerInstructor))
		default:
			// First unrecognized line ends the header; the rest is body.
			break headerLoop
		}
	}

	if c.Title == "" {
		return nil, nil, &FormatError{Field: "Course Title"}
	}

	var sections []Section
	cur := -1 // index into c.Lessons, -1 while in the preamble
	var buf []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if cur >= 0 {
			lesson := c.Lessons[cur]
			sections = append(sections, Section{Lesson: &lesson, Text: text})
		} else if text != "" {
			sections = append(sections, Section{Text: text})
		}
	}

	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])

		if m := lessonMarker.FindStringSubmatch(trimmed); m != nil {
			flush()
			num, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, nil, &FormatError{Field: "Lesson number"}
			}
			c.Lessons = append(c.Lessons, Lesson{Number: num, Title: strings.TrimSpace(m[2])})
			cur = len(c.Lessons) - 1
			continue
		}
		if cur >= 0 && len(buf) == 0 && strings.HasPrefix(trimmed, lessonLinkPrefix) {
			c.Lessons[cur].Link = strings.TrimSpace(strings.TrimPrefix(trimmed, lessonLinkPrefix))
			continue
		}
		buf = append(buf, lines[i])
	}
	flush()

	return c, sections, nil
}
