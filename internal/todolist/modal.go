package todolist

// Modal is the visibility of one overlay: closed or open.
type Modal int

const (
	Closed Modal = iota
	Open
)

func (m Modal) IsOpen() bool { return m == Open }

func (m Modal) String() string {
	if m == Open {
		return "open"
	}
	return "closed"
}

// Field is a form input.
type Field int

const (
	FieldTitle Field = iota
	FieldDescription
)
