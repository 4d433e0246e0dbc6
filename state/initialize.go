package state

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"cssscope/scope"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		start: time.Now(),
	}
}

// PrepareScoper builds scoper from configuration, non-empty class overrides
// configured scope class.
func (e *LocalEnv) PrepareScoper(class string) error {
	if len(class) == 0 {
		class = e.Cfg.Scoping.ScopeClass
	}
	if len(class) < 2 || class[0] != '.' {
		return fmt.Errorf("scope class must be a class selector starting with '.': %q", class)
	}
	split := e.Cfg.Scoping.CommaSplit
	if !split.IsValid() {
		return fmt.Errorf("unable to prepare scoper: %w", scope.ErrInvalidCommaSplit)
	}

	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}
	e.Scoper = scope.New(class, scope.WithCommaSplit(split), scope.WithLogger(log))
	log.Debug("Scoper prepared", zap.String("class", class), zap.Stringer("comma_split", split))
	return nil
}
