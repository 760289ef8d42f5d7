package gpu

import (
	"fmt"
	"time"

	"github.com/openfluke/webgpu/wgpu"
	"go.uber.org/zap"
)

// mapTimeout bounds how long a result readback polls the device.
const mapTimeout = 2 * time.Second

// MatMulTrans computes out = A·Bᵀ on the GPU in float32.
// a: [rows][inner] (flattened), b: [cols][inner] (flattened),
// out: [rows][cols] (flattened).
//
// Every call compiles its own pipeline and releases it before returning.
func MatMulTrans(a []float32, rows, inner int, b []float32, cols int) ([]float32, error) {
	if len(a) != rows*inner || len(b) != cols*inner {
		return nil, fmt.Errorf("matmul: got %d and %d values for %dx%d · (%dx%d)ᵀ",
			len(a), len(b), rows, inner, cols, inner)
	}
	if rows == 0 || cols == 0 {
		return make([]float32, rows*cols), nil
	}

	c, err := GetContext()
	if err != nil {
		return nil, err
	}

	k := &matMulKernel{rows: rows, inner: inner, cols: cols}
	defer k.Cleanup()

	if err := k.allocate(c, a, b); err != nil {
		return nil, err
	}
	if err := k.compile(c); err != nil {
		return nil, err
	}
	if err := k.dispatch(c); err != nil {
		return nil, err
	}

	logger.Debug("matmul dispatched",
		zap.Int("rows", rows), zap.Int("inner", inner), zap.Int("cols", cols),
		zap.Uint32("workgroups", k.workgroups))

	return k.read(c)
}

type matMulKernel struct {
	rows, inner, cols int

	lhs, rhs, out   *wgpu.Buffer
	staging         *wgpu.Buffer // MapRead copy of out
	bindGroupLayout *wgpu.BindGroupLayout
	pipeline        *wgpu.ComputePipeline
	bindGroup       *wgpu.BindGroup
	workgroups      uint32
}

func (k *matMulKernel) shader() string {
	return fmt.Sprintf(`
		@group(0) @binding(0) var<storage, read> lhs : array<f32>;
		@group(0) @binding(1) var<storage, read> rhs : array<f32>;
		@group(0) @binding(2) var<storage, read_write> out : array<f32>;

		@compute @workgroup_size(256)
		fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
			let idx = gid.x;
			let n_cols = %du;
			let n_inner = %du;

			if (idx >= arrayLength(&out)) {
				return;
			}

			// idx = row * n_cols + col
			let row = idx / n_cols;
			let col = idx %% n_cols;

			var sum: f32 = 0.0;
			let a_off = row * n_inner;
			let b_off = col * n_inner;
			for (var i: u32 = 0u; i < n_inner; i++) {
				sum += lhs[a_off + i] * rhs[b_off + i];
			}
			out[idx] = sum;
		}
	`, k.cols, k.inner)
}

func (k *matMulKernel) allocate(c *Context, a, b []float32) error {
	var err error
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

	k.lhs, err = c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "MatMul_LHS",
		Contents: wgpu.ToBytes(a),
		Usage:    usage,
	})
	if err != nil {
		return fmt.Errorf("lhs buf: %v", err)
	}
	k.rhs, err = c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "MatMul_RHS",
		Contents: wgpu.ToBytes(b),
		Usage:    usage,
	})
	if err != nil {
		return fmt.Errorf("rhs buf: %v", err)
	}

	outBytes := k.outBytes()
	k.out, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "MatMul_Out",
		Size:  outBytes,
		Usage: usage,
	})
	if err != nil {
		return fmt.Errorf("out buf: %v", err)
	}
	k.staging, err = c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "MatMul_Staging",
		Size:  outBytes,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("staging buf: %v", err)
	}
	return nil
}

func (k *matMulKernel) outBytes() uint64 { return uint64(k.rows * k.cols * 4) }

// dispatch runs the compute pass and copies the product into the staging
// buffer in one submission.
func (k *matMulKernel) dispatch(c *Context) error {
	enc, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, k.bindGroup, nil)
	pass.DispatchWorkgroups(k.workgroups, 1, 1)
	pass.End()
	enc.CopyBufferToBuffer(k.out, 0, k.staging, 0, k.outBytes())

	cmd, err := enc.Finish(nil)
	if err != nil {
		return err
	}
	c.Queue.Submit(cmd)
	return nil
}

// read maps the staging buffer and returns the rows×cols product.
func (k *matMulKernel) read(c *Context) ([]float32, error) {
	size := k.outBytes()
	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	err := k.staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})
	if err != nil {
		return nil, fmt.Errorf("map result: %v", err)
	}

	// Non-blocking poll so a stuck device cannot hang the caller
	timeout := time.After(mapTimeout)
	var status wgpu.BufferMapAsyncStatus
Loop:
	for {
		c.Device.Poll(false, nil)
		select {
		case status = <-done:
			break Loop
		case <-timeout:
			logger.Warn("matmul readback timed out",
				zap.Int("rows", k.rows), zap.Int("cols", k.cols), zap.Duration("timeout", mapTimeout))
			return nil, fmt.Errorf("matmul readback timed out after %v", mapTimeout)
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		logger.Warn("matmul readback failed", zap.Any("status", status))
		return nil, fmt.Errorf("map result: status %v", status)
	}
	defer k.staging.Unmap()

	data := k.staging.GetMappedRange(0, uint(size))
	if data == nil {
		return nil, fmt.Errorf("map result: empty mapped range")
	}
	out := make([]float32, k.rows*k.cols)
	copy(out, wgpu.FromBytes[float32](data))
	return out, nil
}

func (k *matMulKernel) compile(c *Context) error {
	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "MatMul_Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: k.shader()},
	})
	if err != nil {
		return fmt.Errorf("shader compile: %v", err)
	}
	defer module.Release()

	// Explicit layout, "auto" layouts misbehave under WASM
	k.bindGroupLayout, err = c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "MatMul_BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bgl: %v", err)
	}

	pipelineLayout, err := c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "MatMul_Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{k.bindGroupLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %v", err)
	}

	k.pipeline, err = c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "MatMul_Pipe",
		Layout: pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("pipeline create: %v", err)
	}

	k.bindGroup, err = c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "MatMul_Bind",
		Layout: k.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: k.lhs, Size: k.lhs.GetSize()},
			{Binding: 1, Buffer: k.rhs, Size: k.rhs.GetSize()},
			{Binding: 2, Buffer: k.out, Size: k.out.GetSize()},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %v", err)
	}

	total := uint32(k.rows * k.cols)
	k.workgroups = (total + 255) / 256
	return nil
}

// Cleanup releases every GPU resource the kernel created.
func (k *matMulKernel) Cleanup() {
	if k.bindGroup != nil {
		k.bindGroup.Release()
	}
	if k.pipeline != nil {
		k.pipeline.Release()
	}
	for _, b := range []*wgpu.Buffer{k.lhs, k.rhs, k.out, k.staging} {
		if b != nil {
			b.Destroy()
		}
	}
}
