package device_info

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingProvider struct {
	calls atomic.Int32
	info  enc.Object
}

func (p *countingProvider) DeviceInfo() (enc.Object, bool) {
	p.calls.Add(1)
	return p.info, p.info != nil
}

func TestRuntimeProvider(t *testing.T) {
	t.Run("should describe the running process", func(t *testing.T) {
		info, ok := RuntimeProvider{}.DeviceInfo()
		assert.True(t, ok)
		osValue, found := info.Get("os")
		assert.True(t, found)
		assert.Equal(t, enc.String(runtime.GOOS), osValue)
	})
}

func TestNoopProvider(t *testing.T) {
	t.Run("should report no data", func(t *testing.T) {
		info, ok := NoopProvider{}.DeviceInfo()
		assert.False(t, ok)
		assert.Nil(t, info)
	})
}

func TestCachedProvider(t *testing.T) {
	t.Run("should query the inner provider once within the ttl", func(t *testing.T) {
		inner := &countingProvider{info: enc.Object{enc.Field("model", enc.String("pixel"))}}
		p, err := NewCachedProvider(inner, time.Minute, zap.NewNop())
		require.Nil(t, err)
		defer p.Close()

		first, ok := p.DeviceInfo()
		assert.True(t, ok)
		p.Wait()
		second, ok := p.DeviceInfo()
		assert.True(t, ok)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), inner.calls.Load())
	})

	t.Run("should cache the absence of data", func(t *testing.T) {
		inner := &countingProvider{}
		p, err := NewCachedProvider(inner, time.Minute, zap.NewNop())
		require.Nil(t, err)
		defer p.Close()

		_, ok := p.DeviceInfo()
		assert.False(t, ok)
		p.Wait()
		_, ok = p.DeviceInfo()
		assert.False(t, ok)
		assert.Equal(t, int32(1), inner.calls.Load())
	})
}
