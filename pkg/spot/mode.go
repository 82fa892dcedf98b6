package spot

// Mode is the routing mode of a Robot session.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeAuthoring Mode = "authoring"
	ModeLive      Mode = "live"
)

// sessionMode is a closed set of session states. The program under
// construction exists only inside authoringMode.
type sessionMode interface {
	kind() Mode
}

type idleMode struct{}

type liveMode struct{}

type authoringMode struct {
	program *Program
	// resume is the mode restored once the program is flushed.
	resume sessionMode
}

func (idleMode) kind() Mode      { return ModeIdle }
func (liveMode) kind() Mode      { return ModeLive }
func (authoringMode) kind() Mode { return ModeAuthoring }
