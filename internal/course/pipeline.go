package course

import "log/slog"

// Pipeline turns raw document text into a Course plus its ordered,
// context-prefixed chunks. Parsing failures surface as *FormatError so
// ingestion can skip the document and continue.
type Pipeline struct {
	chunker *Chunker
	logger  *slog.Logger
}

func NewPipeline(chunker *Chunker, logger *slog.Logger) *Pipeline {
	return &Pipeline{chunker: chunker, logger: logger}
}

// Process parses and chunks one document. Chunk indices are monotonic
// across the whole course, in document order.
func (p *Pipeline) Process(text string) (*Course, []Chunk, error) {
	c, sections, err := ParseDocument(text)
	if err != nil {
		return nil, nil, err
	}

	var chunks []Chunk
	idx := 0
	for _, sec := range sections {
		var lessonNumber *int
		if sec.Lesson != nil {
			n := sec.Lesson.Number
			lessonNumber = &n
		}
		prefix := ContextPrefix(c.Title, lessonNumber)
		for _, piece := range p.chunker.SplitText(sec.Text) {
			chunks = append(chunks, Chunk{
				CourseTitle:  c.Title,
				LessonNumber: lessonNumber,
				Index:        idx,
				Text:         prefix + piece,
			})
			idx++
		}
	}

	p.logger.Debug("processed course document",
		slog.String("course", c.Title),
		slog.Int("lessons", len(c.Lessons)),
		slog.Int("chunks", len(chunks)))

	return c, chunks, nil
}
