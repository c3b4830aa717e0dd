package domain

import "time"

// Mode is the answer mode chosen before a quiz starts.
type Mode string

const (
	ModeMCQ   Mode = "mcq"
	ModeInput Mode = "input"
)

// Valid reports whether m is a known answer mode.
func (m Mode) Valid() bool {
	return m == ModeMCQ || m == ModeInput
}

// Reason is the machine-readable cause attached to forced submissions and redirects.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonMultiTab       Reason = "multi_tab"
	ReasonMultiTabCount  Reason = "multi_tab_count"
	ReasonMultiTabActive Reason = "multi_tab_active"
	ReasonForced         Reason = "forced"
)

// OptionKeys lists the option slots a question may carry, in display order.
var OptionKeys = []string{"A", "B", "C", "D"}

// Question is an identification question. Immutable once fetched for a session.
type Question struct {
	ID            string            `json:"id"`
	Text          string            `json:"questionText"`
	TextFr        string            `json:"questionTextFr,omitempty"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correctAnswer"`
	ImageURL      string            `json:"imageUrl,omitempty"`
	Category      string            `json:"category"`
	Difficulty    string            `json:"difficulty,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
}

// Snapshot is the resumable state of an in-progress quiz for one category.
type Snapshot struct {
	Questions []Question        `json:"questions"`
	Index     int               `json:"index"`
	Answers   map[string]string `json:"answers"`
	Mode      *Mode             `json:"mode"`
	Timestamp int64             `json:"ts"`
}

// LockRecord is the single shared record naming the session that may run a quiz.
type LockRecord struct {
	SessionID string `json:"sessionId"`
	TabID     string `json:"tabId"`
	Category  string `json:"category"`
	Timestamp int64  `json:"ts"`
}

// HistoryEntry is an immutable record of one submitted quiz.
type HistoryEntry struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"ts"`
	Category   string `json:"category"`
	Mode       Mode   `json:"mode"`
	Total      int    `json:"total"`
	Answered   int    `json:"answered"`
	Correct    int    `json:"correct"`
	Percentage int    `json:"percentage"`
	Reason     Reason `json:"reason,omitempty"`
}

// TestResult is a history entry recorded server-side for an identity.
type TestResult struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	Category    string    `json:"category"`
	Mode        Mode      `json:"mode"`
	Total       int       `json:"total"`
	Answered    int       `json:"answered"`
	Correct     int       `json:"correct"`
	Percentage  int       `json:"percentage"`
	Reason      Reason    `json:"reason,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// SignalChange is delivered to contexts other than the writer when a shared key changes.
type SignalChange struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// Millis converts t to the millisecond timestamps stored in shared records.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Relay frame types.
const (
	RelayGet         = "get"
	RelaySet         = "set"
	RelayDelete      = "delete"
	RelaySubscribe   = "subscribe"
	RelayUnsubscribe = "unsubscribe"
	RelayResult      = "result"
	RelayChange      = "change"
)

// RelayMessage is the websocket frame exchanged with the signal relay. Requests
// carry an ID echoed by their result; change frames carry the subscription's ID.
type RelayMessage struct {
	ID     int64         `json:"id"`
	Type   string        `json:"type"`
	Key    string        `json:"key,omitempty"`
	Keys   []string      `json:"keys,omitempty"`
	Value  string        `json:"value,omitempty"`
	Found  bool          `json:"found,omitempty"`
	Error  string        `json:"error,omitempty"`
	Change *SignalChange `json:"change,omitempty"`
}
