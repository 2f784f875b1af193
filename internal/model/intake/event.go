package intake

// EventKind tags the inbound event variants a transport can deliver.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventSelection
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventSelection:
		return "selection"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// CommandStart opens the welcome menu.
const CommandStart = "start"

// Selection identifies an inline menu button.
type Selection string

const (
	SelectionBegin Selection = "begin"
	SelectionHelp  Selection = "help"
)

// MessageRef points at a message previously delivered by a transport, so it
// can be edited in place.
type MessageRef struct {
	UserID UserID `json:"userId"`
	ID     string `json:"id"`
}

// IsZero reports whether the reference points nowhere.
func (r MessageRef) IsZero() bool {
	return r.ID == ""
}

// Button is an inline menu entry attached to an outbound message.
type Button struct {
	Label string    `json:"label"`
	Data  Selection `json:"data"`
}

// Event is one inbound interaction from a chat user.
type Event struct {
	UserID    UserID
	Kind      EventKind
	Command   string
	Selection Selection
	Text      string
	// Ref is the message that carried the pressed button, if any.
	Ref MessageRef
}

// NewCommand builds a command event.
func NewCommand(userID UserID, command string) Event {
	return Event{UserID: userID, Kind: EventCommand, Command: command}
}

// NewSelection builds a button selection event.
func NewSelection(userID UserID, selection Selection, ref MessageRef) Event {
	return Event{UserID: userID, Kind: EventSelection, Selection: selection, Ref: ref}
}

// NewText builds a free-text event.
func NewText(userID UserID, text string) Event {
	return Event{UserID: userID, Kind: EventText, Text: text}
}
