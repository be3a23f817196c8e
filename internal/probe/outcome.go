package probe

// Error kinds recorded on failed probes
const (
	ErrorKindPlatform = "platform"
	ErrorKindNetwork  = "network"
)

// ProbeOutcome is the closed set of results one probe can produce. Ok and
// Unavailable are both successful observations; Error means the platform
// never gave a usable answer.
type ProbeOutcome interface {
	isOutcome()
	// Label is the outcome's metric label
	Label() string
}

// Ok means the item can be picked up at the probed point
type Ok struct {
	Price     *float64
	ListPrice *float64
	Quantity  int
	Currency  string
}

// Unavailable means the platform answered and the item cannot be fulfilled
type Unavailable struct {
	Currency string
}

// Error means no availability answer was obtained
type Error struct {
	Kind    string
	Message string
}

func (Ok) isOutcome()          {}
func (Unavailable) isOutcome() {}
func (Error) isOutcome()       {}

func (Ok) Label() string          { return "ok" }
func (Unavailable) Label() string { return "unavailable" }
func (Error) Label() string       { return "error" }
