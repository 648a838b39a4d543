package ports

import "github.com/eleven-am/benchtop/internal/domain"

// ProtocolLoader turns declarative protocol files into experiments. Loaded
// experiments are plain data; registration is the caller's job.
type ProtocolLoader interface {
	LoadFile(path string) ([]*domain.Experiment, error)
	LoadDir(dir string) ([]*domain.Experiment, error)
}
