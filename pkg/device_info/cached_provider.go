package device_info

import (
	"fmt"
	enc "github.com/Avi18971911/flare/pkg/json_encoder"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"time"
)

const cacheKey = "device_info"

type cachedEntry struct {
	info enc.Object
	ok   bool
}

// CachedProvider remembers the answer of another provider for a TTL so that
// capturing an event does not re-query the platform every time.
type CachedProvider struct {
	inner  Provider
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProvider(inner Provider, ttl time.Duration, logger *zap.Logger) (*CachedProvider, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100,
		MaxCost:     10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating device info cache: %w", err)
	}
	return &CachedProvider{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func (p *CachedProvider) DeviceInfo() (enc.Object, bool) {
	if value, found := p.cache.Get(cacheKey); found {
		entry, ok := value.(cachedEntry)
		if ok {
			return entry.info, entry.ok
		}
		p.logger.Warn("Unexpected value type in device info cache", zap.String("type", fmt.Sprintf("%T", value)))
	}
	info, ok := p.inner.DeviceInfo()
	if set := p.cache.SetWithTTL(cacheKey, cachedEntry{info: info, ok: ok}, 1, p.ttl); !set {
		p.logger.Debug("Device info was not admitted to the cache")
	}
	return info, ok
}

// Wait blocks until pending cache writes are visible.
func (p *CachedProvider) Wait() {
	p.cache.Wait()
}

func (p *CachedProvider) Close() {
	p.cache.Close()
}
