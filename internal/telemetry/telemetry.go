// internal/telemetry/telemetry.go
package telemetry

import "github.com/trackday/vehsim/pkg/core"

// Backend is the interface all telemetry recorders must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (the backend may assign s.ID)
	StartSession(s *core.Session) error
	EndSession() error

	// State recording
	RecordSample(s *core.Sample) error
}

// Exporter is an optional interface for backends that produce a file.
type Exporter interface {
	GetExportedFilePath() string
}
