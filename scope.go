package di

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/dozm/opendi/errorx"
	"github.com/dozm/opendi/typesys"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContainerEngineScope is a container scope. It owns the scoped instances and
// the disposables resolved through it.
type ContainerEngineScope struct {
	ID               uuid.UUID
	RootContainer    *container
	IsRootScope      bool
	ResolvedServices map[ServiceCacheKey]any
	Locker           *sync.Mutex
	disposed         bool
	disposables      []Disposable
}

func (s *ContainerEngineScope) Get(serviceType *typesys.Type) (any, error) {
	if s.disposed {
		return nil, &errorx.ObjectDisposedError{Message: fmt.Sprintf("%v (scope %v)", ContainerType, s.ID)}
	}
	return s.RootContainer.GetWithScope(serviceType, s)
}

func (s *ContainerEngineScope) Stats() *Stats {
	return s.RootContainer.stats
}

func (s *ContainerEngineScope) Container() Container {
	return s
}

func (s *ContainerEngineScope) CreateScope() Scope {
	return s.RootContainer.CreateScope()
}

// Dispose disposes the captured services in reverse resolution order. The
// root scope also disposes its container.
func (s *ContainerEngineScope) Dispose() {
	s.Locker.Lock()
	if s.disposed {
		s.Locker.Unlock()
		return
	}
	s.disposed = true
	disposables := s.disposables
	s.disposables = nil
	s.Locker.Unlock()

	if s.IsRootScope && !s.RootContainer.IsDisposed() {
		s.RootContainer.Dispose()
	}

	for i := len(disposables) - 1; i >= 0; i-- {
		disposables[i].Dispose()
	}
	s.RootContainer.logger.Debug("scope disposed",
		zap.Stringer("scope", s.ID),
		zap.Bool("root", s.IsRootScope),
		zap.Int("disposables", len(disposables)))
}

// CaptureDisposable records service for disposal with the scope. locked
// tells whether the caller already holds the scope lock. Capturing into a
// disposed scope disposes the service right away and fails.
func (s *ContainerEngineScope) CaptureDisposable(service any, locked bool) error {
	d, ok := service.(Disposable)
	if !ok || service == s {
		return nil
	}

	if !locked {
		s.Locker.Lock()
	}
	disposed := s.disposed
	if !disposed {
		s.disposables = append(s.disposables, d)
	}
	if !locked {
		s.Locker.Unlock()
	}

	if disposed {
		d.Dispose()
		return fmt.Errorf("capture disposable service '%v', scope disposed", reflect.TypeOf(service))
	}
	return nil
}

func newEngineScope(c *container, isRootScope bool) *ContainerEngineScope {
	s := &ContainerEngineScope{
		ID:               uuid.New(),
		RootContainer:    c,
		IsRootScope:      isRootScope,
		ResolvedServices: make(map[ServiceCacheKey]any),
		Locker:           new(sync.Mutex),
	}
	c.logger.Debug("scope created", zap.Stringer("scope", s.ID), zap.Bool("root", isRootScope))
	return s
}
