package gpu

import (
	"fmt"
	"strings"
	"sync"

	"github.com/openfluke/webgpu/wgpu"
	"go.uber.org/zap"
)

// Context holds the single WebGPU context for the application
type Context struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	once     sync.Once
	initErr  error
}

var (
	ctx    Context
	logger = zap.NewNop()
)

// SetLogger routes adapter selection and kernel logs to l. Passing nil
// restores the no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l.Named("gpu")
}

// GetContext returns the singleton GPU context, initializing it if necessary.
// A failed initialization is remembered; later calls return the same error.
func GetContext() (*Context, error) {
	ctx.once.Do(func() {
		ctx.initErr = ctx.init()
	})

	if ctx.initErr != nil {
		return nil, ctx.initErr
	}
	if ctx.Device == nil || ctx.Queue == nil {
		return nil, fmt.Errorf("WebGPU device or queue not initialized")
	}
	return &ctx, nil
}

// EnsureGPU initializes the context and reports whether a device is
// available.
func EnsureGPU() error {
	_, err := GetContext()
	return err
}

func (c *Context) init() error {
	c.Instance = wgpu.CreateInstance(nil)
	if c.Instance == nil {
		return fmt.Errorf("failed to create WebGPU instance")
	}

	// Prefer a discrete NVIDIA adapter when one is present
	for _, a := range c.Instance.EnumerateAdapters(nil) {
		info := a.GetInfo()
		logger.Debug("found adapter",
			zap.String("name", info.Name),
			zap.String("vendor", info.VendorName),
			zap.Any("device_id", info.DeviceId))
		if strings.Contains(strings.ToLower(info.Name), "nvidia") ||
			strings.Contains(strings.ToLower(info.VendorName), "nvidia") {
			c.Adapter = a
			break
		}
	}

	var err error
	for _, opts := range []*wgpu.RequestAdapterOptions{
		{PowerPreference: wgpu.PowerPreferenceHighPerformance},
		{PowerPreference: wgpu.PowerPreferenceLowPower},
		nil,
	} {
		if c.Adapter != nil {
			break
		}
		c.Adapter, err = c.Instance.RequestAdapter(opts)
		if err != nil {
			logger.Debug("adapter request failed, falling back", zap.Error(err))
		}
	}
	if c.Adapter == nil {
		return fmt.Errorf("all adapter attempts failed: %v", err)
	}

	info := c.Adapter.GetInfo()
	logger.Info("using GPU adapter", zap.String("name", info.Name), zap.String("vendor", info.VendorName))

	c.Device, err = c.Adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	c.Queue = c.Device.GetQueue()
	return nil
}
