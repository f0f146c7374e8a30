package device_info

import (
	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"os"
	"runtime"
)

// Provider supplies platform metadata merged under user metadata. Returning
// false means no data is available, which is a normal outcome.
type Provider interface {
	DeviceInfo() (enc.Object, bool)
}

type NoopProvider struct{}

func (NoopProvider) DeviceInfo() (enc.Object, bool) {
	return nil, false
}

type StaticProvider struct {
	Info enc.Object
}

func (p StaticProvider) DeviceInfo() (enc.Object, bool) {
	return p.Info, len(p.Info) > 0
}

// RuntimeProvider describes the process the client runs in.
type RuntimeProvider struct{}

func (RuntimeProvider) DeviceInfo() (enc.Object, bool) {
	info := enc.Object{
		enc.Field("os", enc.String(runtime.GOOS)),
		enc.Field("arch", enc.String(runtime.GOARCH)),
		enc.Field("go_version", enc.String(runtime.Version())),
		enc.Field("num_cpu", enc.Int(runtime.NumCPU())),
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		info = append(info, enc.Field("hostname", enc.String(host)))
	}
	return info, true
}
