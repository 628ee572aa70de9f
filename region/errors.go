package region

import (
	"errors"
	"fmt"
)

// ErrConfig is the kind of every ConfigError.
var ErrConfig = errors.New("invalid configuration")

// ConfigError reports a malformed region or sweep parameter. It is raised
// before any motion happens and is fatal to the run.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfig, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfig, e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

func invalidf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool { return errors.Is(err, ErrConfig) }
