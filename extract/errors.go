package extract

// Reason tells why nothing could be extracted.
type Reason int

const (
	// NoSelection means caller gave neither container nor usable selection.
	NoSelection Reason = iota + 1
	// EmptyContent means selection exists but produced no blocks.
	EmptyContent
)

func (r Reason) String() string {
	switch r {
	case NoSelection:
		return "NoSelection"
	case EmptyContent:
		return "EmptyContent"
	}
	return "Unknown"
}

// ExtractionError is fatal for the export and its message is meant for the
// end user.
type ExtractionError struct {
	Reason Reason
}

func (e *ExtractionError) Error() string {
	switch e.Reason {
	case NoSelection:
		return "please select text on the page to export"
	case EmptyContent:
		return "selected content is empty"
	}
	return "unable to extract content"
}

// Is makes errors.Is(err, ErrNoSelection) work for any instance with the
// same reason.
func (e *ExtractionError) Is(target error) bool {
	t, ok := target.(*ExtractionError)
	return ok && t.Reason == e.Reason
}

var (
	ErrNoSelection  = &ExtractionError{Reason: NoSelection}
	ErrEmptyContent = &ExtractionError{Reason: EmptyContent}
)
