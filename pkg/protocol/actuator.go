// Package protocol defines the contracts the engine consumes from its
// external collaborators: input injection, screen capture, window
// enumeration, and process supervision. Implementations are platform
// specific and live outside the engine.
package protocol

// Actuator is the input-injection contract. Every call is synchronous and
// either succeeds or returns a recoverable error; the engine treats an error
// as a step failure, never as a crash.
type Actuator interface {
	MoveTo(x, y int) error
	Click() error
	DoubleClick() error
	RightClick() error
	TypeText(s string) error
	KeyPress(key string) error
	Hotkey(keys ...string) error
}

// Clipboard reads and writes the OS clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(s string) error
}
