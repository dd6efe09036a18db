package trellis

// --- Root ---

type rootState struct {
	surfaceNodeID   NodeID
	renderSurface   RenderSurface
	enableRender    bool
	suggestedWidth  float64
	suggestedHeight float64
	dirtyManager    *DirtyRegionManager
	childSurfaceIDs []NodeID
	needUpdate      bool
}

// NewRootNode creates the root canvas node of a window. It paints into the
// RenderSurface attached with AttachRenderSurface.
func NewRootNode(id NodeID) *Node {
	n := &Node{id: id, kind: KindRoot}
	nodeDefaults(n)
	n.root = &rootState{
		enableRender: true,
		dirtyManager: NewDirtyRegionManager(),
	}
	return n
}

// AttachRenderSurface binds the root to the surface node that represents
// its window and to the buffer producer frames are drawn into.
func (n *Node) AttachRenderSurface(surfaceNodeID NodeID, s RenderSurface) {
	if n.root == nil {
		return
	}
	n.root.surfaceNodeID = surfaceNodeID
	n.root.renderSurface = s
}

// RootSurfaceNodeID returns the id of the window's surface node.
func (n *Node) RootSurfaceNodeID() NodeID {
	if n.root == nil {
		return FallbackNodeID
	}
	return n.root.surfaceNodeID
}

// RenderSurface returns the attached buffer producer, or nil.
func (n *Node) RenderSurface() RenderSurface {
	if n.root == nil {
		return nil
	}
	return n.root.renderSurface
}

// SetEnableRender turns painting of the root on or off.
func (n *Node) SetEnableRender(on bool) {
	if n.root == nil || n.root.enableRender == on {
		return
	}
	n.root.enableRender = on
	n.SetDirty()
}

func (n *Node) IsRenderEnabled() bool { return n.root != nil && n.root.enableRender }

// SetSuggestedBufferSize sets the buffer size requested for each frame,
// before the root's scale is applied.
func (n *Node) SetSuggestedBufferSize(width, height float64) {
	if n.root == nil {
		return
	}
	n.root.suggestedWidth, n.root.suggestedHeight = width, height
}

func (n *Node) SuggestedBufferSize() (float64, float64) {
	if n.root == nil {
		return 0, 0
	}
	return n.root.suggestedWidth, n.root.suggestedHeight
}

// RootDirtyManager returns the damage accumulator of a root.
func (n *Node) RootDirtyManager() *DirtyRegionManager {
	if n.root == nil {
		return nil
	}
	return n.root.dirtyManager
}

// SetNeedUpdateSurfaceNode forces the next frame to republish the child
// surface list even when it did not change.
func (n *Node) SetNeedUpdateSurfaceNode(on bool) {
	if n.root != nil {
		n.root.needUpdate = on
	}
}

func (n *Node) NeedUpdateSurfaceNode() bool { return n.root != nil && n.root.needUpdate }

// RootChildSurfaceIDs returns the child surface ids published last frame.
func (n *Node) RootChildSurfaceIDs() []NodeID {
	if n.root == nil {
		return nil
	}
	return n.root.childSurfaceIDs
}

// --- Proxy ---

type proxyState struct {
	target       NodeID
	contextAlpha float64
	contextMat   Matrix
}

// NewProxyNode creates a stand-in for a surface that lives in another
// scene. The proxy only relays its placement to target.
func NewProxyNode(id, target NodeID) *Node {
	n := &Node{id: id, kind: KindProxy}
	nodeDefaults(n)
	n.proxy = &proxyState{target: target, contextAlpha: 1, contextMat: IdentityMatrix}
	return n
}

// ProxyTarget returns the id of the surface a proxy stands in for.
func (n *Node) ProxyTarget() NodeID {
	if n.proxy == nil {
		return FallbackNodeID
	}
	return n.proxy.target
}

// SetProxyContext records the placement of a proxy and sends any change to
// its target.
func (n *Node) SetProxyContext(m Matrix, alpha float64, sink CommandSink) {
	p := n.proxy
	if p == nil {
		return
	}
	if !p.contextMat.Equal(m) {
		p.contextMat = m
		if sink != nil {
			sink.Send(SetContextMatrixCmd{ID: p.target, M: m}, p.target, FollowToSelf)
		}
	}
	if p.contextAlpha != alpha {
		p.contextAlpha = alpha
		if sink != nil {
			sink.Send(SetContextAlphaCmd{ID: p.target, Alpha: alpha}, p.target, FollowToSelf)
		}
	}
}

// ProxyContext returns the last relayed matrix and alpha.
func (n *Node) ProxyContext() (Matrix, float64) {
	if n.proxy == nil {
		return IdentityMatrix, 1
	}
	return n.proxy.contextMat, n.proxy.contextAlpha
}

// --- Display ---

// Rotation is a screen rotation in quarter turns.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// Degrees returns the rotation in degrees.
func (r Rotation) Degrees() float64 { return float64(r%4) * 90 }

type displayState struct {
	screenID uint64
	width    int
	height   int
	rotation Rotation
	offsetX  int
	offsetY  int
	mirror   *Node
	security bool
}

// DisplayConfig describes a screen.
type DisplayConfig struct {
	ScreenID uint64
	Width    int
	Height   int
	Rotation Rotation
	// MirrorOf, when set, makes the display show another display's content.
	MirrorOf *Node
}

// NewDisplayNode creates a display node, the top of one screen's surfaces.
// Display nodes carry no render properties.
func NewDisplayNode(id NodeID, cfg DisplayConfig) *Node {
	n := &Node{id: id, kind: KindDisplay}
	nodeDefaults(n)
	n.display = &displayState{
		screenID: cfg.ScreenID,
		width:    cfg.Width,
		height:   cfg.Height,
		rotation: cfg.Rotation,
		mirror:   cfg.MirrorOf,
	}
	return n
}

func (n *Node) ScreenID() uint64 {
	if n.display == nil {
		return 0
	}
	return n.display.screenID
}

// SetScreenSize changes the physical screen size of a display.
func (n *Node) SetScreenSize(width, height int) {
	if n.display == nil {
		return
	}
	n.display.width, n.display.height = width, height
	n.SetDirty()
}

// ScreenSize returns the physical (unrotated) screen size.
func (n *Node) ScreenSize() (int, int) {
	if n.display == nil {
		return 0, 0
	}
	return n.display.width, n.display.height
}

// ScreenRect returns the screen as a rect at the origin, in the rotated
// orientation.
func (n *Node) ScreenRect() RectI {
	w, h := n.ScreenSize()
	if r := n.ScreenRotation(); r == Rotation90 || r == Rotation270 {
		w, h = h, w
	}
	return RectI{Width: w, Height: h}
}

func (n *Node) SetScreenRotation(r Rotation) {
	if n.display != nil {
		n.display.rotation = r % 4
		n.SetDirty()
	}
}

func (n *Node) ScreenRotation() Rotation {
	if n.display == nil {
		return Rotation0
	}
	return n.display.rotation
}

// SetDisplayOffset positions the display in the virtual screen space.
func (n *Node) SetDisplayOffset(x, y int) {
	if n.display != nil {
		n.display.offsetX, n.display.offsetY = x, y
	}
}

func (n *Node) DisplayOffset() (int, int) {
	if n.display == nil {
		return 0, 0
	}
	return n.display.offsetX, n.display.offsetY
}

// MirrorSource returns the display being mirrored, or nil.
func (n *Node) MirrorSource() *Node {
	if n.display == nil || n.display.mirror == nil || n.display.mirror.disposed {
		return nil
	}
	return n.display.mirror
}

// SetSecurityDisplay marks a display that must not show security layers.
func (n *Node) SetSecurityDisplay(on bool) {
	if n.display != nil {
		n.display.security = on
	}
}

func (n *Node) IsSecurityDisplay() bool { return n.display != nil && n.display.security }
