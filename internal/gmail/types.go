package gmail

type MessageID string
type LabelID string

// LabelStarred is the system label Gmail applies to starred mail.
const LabelStarred LabelID = "STARRED"

const subjectHeader = "Subject"

type Header struct {
	Name  string
	Value string
}

// Message keeps headers in the order the provider returned them.
type Message struct {
	ID      MessageID
	Headers []Header
	Snippet string
}

type ListOptions struct {
	LabelIDs   []LabelID
	MaxResults int
}

type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}

// Header returns the value of the first header whose name matches exactly.
func (m Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// SubjectOf returns the first "Subject" header. ok is false when the message has none.
func SubjectOf(m Message) (subject string, ok bool) {
	return m.Header(subjectHeader)
}
