package ingest

const (
	StatusIndexed = "indexed"
	StatusFailed  = "failed"

	// UnknownFilename names outcomes that do not belong to any submitted item, and
	// uploaded parts without a file name.
	UnknownFilename = "unknown"
	// UntitledFilename names batch documents submitted without a title.
	UntitledFilename = "Unknown"
)

const (
	MsgEmptyContent           = "Empty content is not allowed"
	MsgUnsupportedFileType    = "Unsupported file type. Only .txt and .md files are allowed"
	MsgInvalidUTF8            = "Invalid UTF-8 content"
	MsgUnsupportedContentType = "Unsupported content type"
	MsgInvalidJSON            = "Failed to parse JSON request"
	MsgInvalidMultipart       = "Failed to parse multipart request"
)

type Outcome struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Document is a decoded item ready for indexing. Slot is the position of its
// outcome in the batch.
type Document struct {
	Title   *string
	Content string
	Slot    int
}

// Batch holds one outcome per submitted item, in submission order, and the
// documents that passed decoding.
type Batch struct {
	Outcomes  []Outcome
	Documents []Document
}

// Rejected returns a batch holding a single failed outcome for a request that could
// not be decoded at all.
func Rejected(message string) *Batch {
	batch := &Batch{}
	batch.fail(UnknownFilename, message)
	return batch
}

func (b *Batch) indexed(filename string) int {
	b.Outcomes = append(b.Outcomes, Outcome{Filename: filename, Status: StatusIndexed})
	return len(b.Outcomes) - 1
}

func (b *Batch) fail(filename string, message string) {
	b.Outcomes = append(b.Outcomes, Outcome{Filename: filename, Status: StatusFailed, Error: message})
}

// MarkFailed turns the outcome in slot into a failure.
func (b *Batch) MarkFailed(slot int, message string) {
	if slot < 0 || slot >= len(b.Outcomes) {
		return
	}
	b.Outcomes[slot].Status = StatusFailed
	b.Outcomes[slot].Error = message
}

func (b *Batch) Counts() (indexed int, failed int) {
	for _, outcome := range b.Outcomes {
		switch outcome.Status {
		case StatusIndexed:
			indexed++
		case StatusFailed:
			failed++
		}
	}
	return indexed, failed
}
