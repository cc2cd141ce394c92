package authctx

import (
	"fmt"

	"github.com/tomaskub292929/to-korea-sub000/internal/authprovider"
	"github.com/tomaskub292929/to-korea-sub000/pkg/logger"
)

// Factory opens started sessions over a shared provider backend. Each
// session gets its own client so held identities never leak between callers.
type Factory struct {
	backend authprovider.Backend
	users   identityManager
	logg    *logger.Logger
}

func NewFactory(backend authprovider.Backend, users identityManager, logg *logger.Logger) (*Factory, error) {
	if backend == nil {
		return nil, fmt.Errorf("auth backend is required")
	}
	if users == nil {
		return nil, fmt.Errorf("identity manager is required")
	}
	return &Factory{backend: backend, users: users, logg: logg}, nil
}

// Open returns a started Session. The caller must Close it.
func (f *Factory) Open() (*Session, error) {
	s, err := NewSession(SessionParams{
		Client: authprovider.NewClient(f.backend),
		Users:  f.users,
		Logger: f.logg,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}
