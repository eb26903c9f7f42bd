//go:build windows

package ptyhost

// StartTerminal is unavailable until a ConPTY backend exists.
func StartTerminal(c Command) (Terminal, error) {
	return nil, ErrPTYNotSupported
}
