package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/uihost/internal/abi"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("guest call timed out")
	ErrNoExport   = errors.New("guest does not export entry point")
	ErrNoHandler  = errors.New("no event handler registered")
	ErrClosed     = errors.New("guest instance is closed")
)

// Engine names a guest execution engine
type Engine string

const (
	EngineWasm Engine = "wasm"
	EngineJS   Engine = "js"
)

// Config defines sandbox configuration
type Config struct {
	CallTimeout    time.Duration // Per guest call, zero disables
	MaxMemoryPages uint32        // WebAssembly linear memory cap in 64KiB pages
	JSPoolSize     int           // Pre-created JavaScript runtimes
	EnableConsole  bool          // Allow console.log/warn/error in JavaScript guests
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{
		CallTimeout:    5 * time.Second,
		MaxMemoryPages: 256,
		JSPoolSize:     4,
		EnableConsole:  true,
	}
}

// Instance is one loaded guest. Calls are not safe for concurrent use and
// expect the caller to have entered the host frame.
type Instance interface {
	Engine() Engine
	// Main runs the guest entry point with the document root
	Main(ctx context.Context, root abi.Handle) error
	// Call invokes function-table slot idx and returns its i32 result
	Call(ctx context.Context, idx int32, arg abi.Handle) (int32, error)
	// CallRef invokes function-table slot idx and returns a handle
	CallRef(ctx context.Context, idx int32, arg abi.Handle) (abi.Handle, error)
	Close(ctx context.Context) error
}

// Observer receives one report per guest call
type Observer interface {
	GuestCall(engine Engine, op string, duration time.Duration, err error)
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
