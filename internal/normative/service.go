package normative

import (
	"fmt"
	"time"
)

const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// New builds the Service selected by mode.
func New(mode, url string, timeout time.Duration) (Service, error) {
	switch mode {
	case "", ModeLocal:
		return NewRules(), nil
	case ModeRemote:
		if url == "" {
			return nil, fmt.Errorf("remote normative mode requires a service URL")
		}
		return NewClient(url, timeout), nil
	}
	return nil, fmt.Errorf("unknown normative mode %q", mode)
}
