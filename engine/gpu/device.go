// Package gpu defines the command surface the renderer drives: shader stages and programs with
// name addressed uniforms, textures bound to numbered texture and image units, multi-attachment
// render targets, compute dispatch and explicit memory barriers. Implementations live in
// sub-packages; webgpu targets real hardware and gputest records calls for tests.
package gpu

// Device is a single-threaded GPU command surface. All methods must be called from the goroutine
// that owns the device. Handles returned by one Device are meaningless to another.
type Device interface {
	// Info returns the adapter identity used for capability probing and diagnostics.
	//
	// Returns:
	//   - AdapterInfo: vendor, renderer, version and extension set of the adapter
	Info() AdapterInfo

	// CompileStage compiles one shader stage.
	//
	// Parameters:
	//   - kind: the stage the source is compiled for
	//   - source: the shader source text
	//
	// Returns:
	//   - Stage: the compiled stage handle
	//   - error: the compiler diagnostic if the source was rejected
	CompileStage(kind StageKind, source string) (Stage, error)

	// ReleaseStage frees a compiled stage. Releasing 0 or an already released stage is a no-op.
	ReleaseStage(s Stage)

	// LinkProgram links compiled stages into a program. Valid combinations are vertex+fragment
	// or compute alone.
	//
	// Parameters:
	//   - stages: the compiled stages to link
	//
	// Returns:
	//   - Program: the linked program handle
	//   - error: the linker diagnostic if the stages could not be linked
	LinkProgram(stages ...Stage) (Program, error)

	// ReleaseProgram frees a linked program. Releasing 0 or an already released program is a no-op.
	ReleaseProgram(p Program)

	// UseProgram makes p the active program for dispatches and draws. 0 clears the active program.
	UseProgram(p Program)

	// LookupUniform resolves a uniform of a linked program by name.
	//
	// Parameters:
	//   - p: the linked program
	//   - name: the uniform name
	//
	// Returns:
	//   - UniformInfo: the uniform's location and type
	//   - bool: false if the program has no active uniform with that name
	LookupUniform(p Program, name string) (UniformInfo, bool)

	// ActiveUniforms lists every active uniform of a linked program ordered by location.
	ActiveUniforms(p Program) []UniformInfo

	// SetUniform stores raw little-endian data for the uniform at location. Resource uniforms
	// take a 4 byte signed unit index.
	//
	// Parameters:
	//   - p: the linked program owning the uniform
	//   - location: the location returned by LookupUniform
	//   - data: the encoded value, see EncodeUniform
	SetUniform(p Program, location int, data []byte)

	// CreateTexture allocates a texture with undefined contents.
	//
	// Parameters:
	//   - desc: size and format of the texture
	//
	// Returns:
	//   - Texture: the texture handle
	//   - error: an error if allocation failed
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// ReleaseTexture frees a texture. Releasing 0 or an already released texture is a no-op.
	ReleaseTexture(t Texture)

	// BindTexture binds t to a sampled texture unit. 0 unbinds the unit.
	BindTexture(unit int, t Texture)

	// BindImage binds t to a storage image unit with the given access and format.
	BindImage(unit int, t Texture, access ImageAccess, format TextureFormat)

	// CopyTexture copies the full contents of src into dst. Both must share size and format.
	//
	// Returns:
	//   - error: an error if the textures are incompatible
	CopyTexture(src, dst Texture) error

	// CreateBuffer allocates a buffer of the given kind and size.
	//
	// Returns:
	//   - Buffer: the buffer handle
	//   - error: an error if allocation failed
	CreateBuffer(kind BufferKind, size uint64, label string) (Buffer, error)

	// WriteBuffer uploads data into buf at offset.
	WriteBuffer(buf Buffer, offset uint64, data []byte)

	// ReleaseBuffer frees a buffer. Releasing 0 or an already released buffer is a no-op.
	ReleaseBuffer(buf Buffer)

	// BindBuffer binds buf to a binding point of the given kind. 0 unbinds the point.
	BindBuffer(kind BufferKind, binding int, buf Buffer)

	// CreateRenderTarget assembles color attachments and an optional depth attachment into a
	// render target and checks it for completeness.
	//
	// Parameters:
	//   - colors: the color attachments in location order
	//   - depth: the depth attachment, or 0 for none
	//
	// Returns:
	//   - RenderTarget: the render target handle
	//   - error: a completeness diagnostic if the attachments cannot form a target
	CreateRenderTarget(colors []Texture, depth Texture) (RenderTarget, error)

	// ReleaseRenderTarget frees the target object. Attachments are not released.
	ReleaseRenderTarget(rt RenderTarget)

	// BindRenderTarget makes rt the target of draws and clears. DefaultTarget selects the back buffer.
	BindRenderTarget(rt RenderTarget)

	// Viewport sets the viewport rectangle for subsequent draws.
	Viewport(x, y, width, height int)

	// Clear clears every attachment of the bound target: color attachments to color and the
	// depth attachment to depth.
	Clear(color [4]float32, depth float32)

	// DispatchCompute runs the active compute program over a grid of work-groups.
	DispatchCompute(x, y, z uint32)

	// DrawFullscreen draws one fullscreen triangle with the active graphics program into the bound target.
	DrawFullscreen()

	// MemoryBarrier makes writes from earlier dispatches visible to later reads of the selected kinds.
	MemoryBarrier(b Barrier)

	// Flush submits all recorded work.
	//
	// Returns:
	//   - error: the first deferred device error since the previous Flush, if any
	Flush() error

	// Release frees every object still owned by the device and the device itself.
	Release()
}
