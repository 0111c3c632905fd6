//go:build !cgo
// +build !cgo

package tray

func newSystrayController(Handler) (Controller, error) {
	return nil, errTrayUnavailable
}
