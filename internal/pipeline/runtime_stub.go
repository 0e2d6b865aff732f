//go:build !govips || !cgo

package pipeline

// Backend names the encoder set compiled into this binary.
func Backend() string {
	return "stdlib"
}

func Startup() error {
	return nil
}

func Shutdown() {}
