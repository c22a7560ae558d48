package core

// Content is the typed payload of a Memory. It replaces the open dynamic
// objects of loosely-typed agent stacks with a small closed set of known
// fields plus an Extra escape hatch for forward compatibility. Text is always
// present; the remaining fields qualify the shape:
//
//   - plain text: only Text set
//   - actionable text: Text + Action (the action name the agent chose)
//   - scored text: Text + Score (e.g. evaluator output)
//   - text with attachments: Text + Attachments
type Content struct {
	Text        string            `json:"text"`
	Action      string            `json:"action,omitempty"`
	Source      string            `json:"source,omitempty"`
	InReplyTo   string            `json:"inReplyTo,omitempty"`
	Score       *float64          `json:"score,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Attachment references external media carried alongside a message.
type Attachment struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Description string `json:"description,omitempty"`
}

// TextContent builds a plain text content payload.
func TextContent(text string) Content { return Content{Text: text} }

// ScoredContent builds a text payload carrying an evaluator score.
func ScoredContent(text string, score float64) Content {
	return Content{Text: text, Score: &score}
}

// ActionContent builds a text payload labeled with the action that produced it.
func ActionContent(text, action string) Content {
	return Content{Text: text, Action: action}
}

// Empty reports whether the content carries no text and no attachments.
func (c Content) Empty() bool { return c.Text == "" && len(c.Attachments) == 0 }
