package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/hucancode/mjolnir/engine/camera"
)

// Scene manages a registry of nodes, each carrying a world transform and a
// set of attachments (meshes, lights, particle emitters, force fields), plus
// the main camera and ambient lighting term. The renderer reads the scene
// through the typed traversal methods and never mutates it. Thread-safe for
// concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Camera returns the scene's main camera.
	Camera() camera.Camera

	// SetCamera replaces the scene's main camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// AmbientColor returns the scene's ambient light color.
	//
	// Returns:
	//   - mgl32.Vec3: the ambient RGB color
	AmbientColor() mgl32.Vec3

	// SetAmbientColor sets the scene's ambient light color.
	//
	// Parameters:
	//   - color: the ambient RGB color
	SetAmbientColor(color mgl32.Vec3)

	// Spawn adds a node with the given world transform and attachments and
	// returns its ID. Attachments are fixed for the node's lifetime; the
	// transform is mutable via SetTransform.
	//
	// Parameters:
	//   - transform: the node's world transform
	//   - attachments: the node's capabilities
	//
	// Returns:
	//   - uint64: the assigned node ID
	Spawn(transform mgl32.Mat4, attachments ...Attachment) uint64

	// Transform returns a node's world transform.
	//
	// Parameters:
	//   - id: the node's ID
	//
	// Returns:
	//   - mgl32.Mat4: the node's transform
	//   - bool: false if the node does not exist
	Transform(id uint64) (mgl32.Mat4, bool)

	// SetTransform updates a node's world transform. No-op if the node does
	// not exist.
	//
	// Parameters:
	//   - id: the node's ID
	//   - transform: the new world transform
	SetTransform(id uint64, transform mgl32.Mat4)

	// Attachments returns a node's attachment list, or nil if the node does
	// not exist. The returned slice must not be mutated.
	//
	// Parameters:
	//   - id: the node's ID
	//
	// Returns:
	//   - []Attachment: the node's attachments or nil
	Attachments(id uint64) []Attachment

	// Remove removes a node by ID. No-op if the node does not exist.
	//
	// Parameters:
	//   - id: the node's ID
	Remove(id uint64)

	// Clear removes all nodes from the scene.
	Clear()

	// Count returns the number of nodes in the scene.
	//
	// Returns:
	//   - int: the node count
	Count() int

	// EachLight visits every light attachment in spawn order. Used by the
	// renderer to collect the frame's light records and assign the shadow
	// budget.
	//
	// Parameters:
	//   - v: the visitor receiving each light
	EachLight(v LightVisitor)

	// EachDraw visits every mesh attachment in spawn order as a resolved
	// Instance with world-space bounds. Used by the renderer to build the
	// frame's render batches.
	//
	// Parameters:
	//   - v: the visitor receiving each instance
	EachDraw(v DrawVisitor)

	// EachShadowCaster visits every shadow-casting mesh attachment in spawn
	// order. Transparent instances never cast shadows.
	//
	// Parameters:
	//   - v: the visitor receiving each shadow caster
	EachShadowCaster(v ShadowVisitor)

	// EachParticle visits every emitter and force-field attachment in spawn
	// order, after syncing each source's position to its node transform.
	//
	// Parameters:
	//   - v: the visitor receiving emitters and fields
	EachParticle(v ParticleVisitor)
}

type node struct {
	id          uint64
	transform   mgl32.Mat4
	attachments []Attachment
}

type sceneImpl struct {
	mu *sync.RWMutex

	name         string
	cam          camera.Camera
	ambientColor mgl32.Vec3

	// nodes keeps spawn order for deterministic traversal; index maps IDs
	// to positions for O(1) lookup with swap-remove.
	nodes  []*node
	index  map[uint64]int
	nextID uint64
}

var _ Scene = &sceneImpl{}

// NewScene creates a new Scene with the given camera.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the main camera (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, cam camera.Camera, options ...SceneBuilderOption) Scene {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	s := &sceneImpl{
		mu:           &sync.RWMutex{},
		name:         name,
		cam:          cam,
		ambientColor: mgl32.Vec3{0.03, 0.03, 0.03},
		index:        make(map[uint64]int),
		nextID:       1,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *sceneImpl) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *sceneImpl) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *sceneImpl) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *sceneImpl) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *sceneImpl) AmbientColor() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientColor
}

func (s *sceneImpl) SetAmbientColor(color mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientColor = color
}

func (s *sceneImpl) Spawn(transform mgl32.Mat4, attachments ...Attachment) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.index[id] = len(s.nodes)
	s.nodes = append(s.nodes, &node{
		id:          id,
		transform:   transform,
		attachments: attachments,
	})
	return id
}

func (s *sceneImpl) Transform(id uint64) (mgl32.Mat4, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return mgl32.Ident4(), false
	}
	return s.nodes[i].transform, true
}

func (s *sceneImpl) SetTransform(id uint64, transform mgl32.Mat4) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[id]; ok {
		s.nodes[i].transform = transform
	}
}

func (s *sceneImpl) Attachments(id uint64) []Attachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[id]; ok {
		return s.nodes[i].attachments
	}
	return nil
}

func (s *sceneImpl) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return
	}
	last := len(s.nodes) - 1
	if i != last {
		s.nodes[i] = s.nodes[last]
		s.index[s.nodes[i].id] = i
	}
	s.nodes[last] = nil
	s.nodes = s.nodes[:last]
	delete(s.index, id)
}

func (s *sceneImpl) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = s.nodes[:0]
	s.index = make(map[uint64]int)
}

func (s *sceneImpl) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *sceneImpl) EachLight(v LightVisitor) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		for _, att := range n.attachments {
			switch att.Kind() {
			case AttachmentLightPoint, AttachmentLightSpot, AttachmentLightDirectional:
				src := att.(LightAttachment).Source
				src.SetPosition(translation(n.transform))
				v.VisitLight(n.transform, src)
			case AttachmentMesh, AttachmentEmitter, AttachmentForceField:
			}
		}
	}
}

func (s *sceneImpl) EachDraw(v DrawVisitor) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		for _, att := range n.attachments {
			switch att.Kind() {
			case AttachmentMesh:
				v.VisitDraw(resolveInstance(n, att.(MeshAttachment)))
			case AttachmentLightPoint, AttachmentLightSpot, AttachmentLightDirectional,
				AttachmentEmitter, AttachmentForceField:
			}
		}
	}
}

func (s *sceneImpl) EachShadowCaster(v ShadowVisitor) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		for _, att := range n.attachments {
			switch att.Kind() {
			case AttachmentMesh:
				mesh := att.(MeshAttachment)
				if mesh.CastShadow && !mesh.Transparent {
					v.VisitShadowCaster(resolveInstance(n, mesh))
				}
			case AttachmentLightPoint, AttachmentLightSpot, AttachmentLightDirectional,
				AttachmentEmitter, AttachmentForceField:
			}
		}
	}
}

func (s *sceneImpl) EachParticle(v ParticleVisitor) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		for _, att := range n.attachments {
			switch att.Kind() {
			case AttachmentEmitter:
				e := att.(EmitterAttachment).Source
				e.SetPosition(translation(n.transform))
				v.VisitEmitter(e)
			case AttachmentForceField:
				f := att.(ForceFieldAttachment).Source
				f.SetPosition(translation(n.transform))
				v.VisitForceField(f)
			case AttachmentMesh, AttachmentLightPoint, AttachmentLightSpot, AttachmentLightDirectional:
			}
		}
	}
}

// resolveInstance combines a node's transform with its mesh attachment into
// a per-frame drawable with world-space bounds.
func resolveInstance(n *node, mesh MeshAttachment) Instance {
	return Instance{
		NodeID:        n.id,
		Transform:     n.transform,
		Mesh:          mesh.Mesh,
		Material:      mesh.Material,
		CastShadow:    mesh.CastShadow,
		ReceiveShadow: mesh.ReceiveShadow,
		Transparent:   mesh.Transparent,
		Bounds:        mesh.Bounds.Transformed(n.transform),
	}
}

// translation extracts the world-space position from a transform.
func translation(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}
