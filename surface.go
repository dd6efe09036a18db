package trellis

import (
	"image"
	"math"
	"sync"
	"sync/atomic"
)

// SurfaceNodeType classifies a surface node.
type SurfaceNodeType uint8

const (
	SurfaceDefault SurfaceNodeType = iota
	SurfaceAppWindow
	SurfaceStartingWindow
	SurfaceLeashWindow
	SurfaceSelfDrawing
	SurfaceSelfDrawingWindow
	SurfaceAbilityComponent
)

func (t SurfaceNodeType) String() string {
	switch t {
	case SurfaceDefault:
		return "default"
	case SurfaceAppWindow:
		return "app_window"
	case SurfaceStartingWindow:
		return "starting_window"
	case SurfaceLeashWindow:
		return "leash_window"
	case SurfaceSelfDrawing:
		return "self_drawing"
	case SurfaceSelfDrawingWindow:
		return "self_drawing_window"
	case SurfaceAbilityComponent:
		return "ability_component"
	}
	return "unknown"
}

// ColorGamut is the color space attached to a surface or its buffers.
type ColorGamut uint8

const (
	ColorGamutSRGB ColorGamut = iota
	ColorGamutDisplayP3
	ColorGamutAdobeRGB
)

// ContainerWindowConfig selects how the decoration of a container window
// is carved out of its opaque region.
type ContainerWindowConfig uint8

const (
	// ContainerWindowDisabled treats the whole window as opaque.
	ContainerWindowDisabled ContainerWindowConfig = iota
	// ContainerWindowLevel0 insets title, padding and border.
	ContainerWindowLevel0
	// ContainerWindowUnfocusedLevel1 drops the rounded top and bottom bands
	// of unfocused windows.
	ContainerWindowUnfocusedLevel1
	// ContainerWindowUnfocusedLevel2 keeps the rounded cross shape of
	// unfocused windows.
	ContainerWindowUnfocusedLevel2
)

// Container decoration sizes in virtual pixels.
const (
	containerTitleHeight  = 37
	containerContentPad   = 4
	containerBorderWidth  = 1
	containerOuterRadius  = 16
	containerInnerRadius  = 14
	defaultContainerScale = 2
)

const opaqueAbilityAlpha = 255

// SurfaceConfig describes a new surface node.
type SurfaceConfig struct {
	Name string
	Type SurfaceNodeType
}

// BufferAvailableFunc is called when a surface first has a buffer to show.
type BufferAvailableFunc func()

type surfaceState struct {
	name     string
	nodeType SurfaceNodeType

	contextMatrix Matrix
	contextAlpha  float64
	contextClip   Rect

	totalMatrix    Matrix
	srcRect        RectI
	dstRect        RectI
	dstRectChanged bool
	globalAlpha    float64
	alphaChanged   bool
	abilityBgAlpha uint8
	offsetX        int
	offsetY        int
	positionZ      float64
	security       bool
	colorSpace     ColorGamut
	defaultWidth   float64
	defaultHeight  float64
	qosPidCal      bool

	hasBuffer    bool
	tunnelHandle bool
	background   bool
	dirtyManager *DirtyRegionManager

	mu                 sync.Mutex
	rtAvailablePre     bool
	rtAvailable        atomic.Bool
	uiAvailable        atomic.Bool
	callbackFromRT     BufferAvailableFunc
	callbackFromUI     BufferAvailableFunc
	refreshCallback    func()
	startAnimFinished  bool
	appFreeze          atomic.Bool
	childSurfaceIDs    []NodeID
	occlusionVisible   bool
	visibleRegion      Region
	visibleDirtyRegion Region
	globalDirtyRegion  Region
	globalDirtyEmpty   bool
	dirtyBelow         Region
	dirtyBelowEmpty    bool
	opaqueRegion       Region
	transparentRegion  Region
	opaqueChanged      bool

	hasContainer      bool
	titleHeight       int
	contentPadding    int
	borderWidth       int
	outerRadius       int
	innerRadius       int
	parallelVisitLock sync.Mutex

	cacheMu     sync.Mutex
	cachedImage image.Image
}

func newSurfaceState(cfg SurfaceConfig) *surfaceState {
	return &surfaceState{
		name:             cfg.Name,
		nodeType:         cfg.Type,
		contextMatrix:    IdentityMatrix,
		contextAlpha:     1,
		totalMatrix:      IdentityMatrix,
		globalAlpha:      1,
		dirtyManager:     NewDirtyRegionManager(),
		occlusionVisible: true,
		titleHeight:      containerTitleHeight * defaultContainerScale,
		contentPadding:   containerContentPad * defaultContainerScale,
		borderWidth:      containerBorderWidth * defaultContainerScale,
		outerRadius:      containerOuterRadius * defaultContainerScale,
		innerRadius:      containerInnerRadius * defaultContainerScale,
	}
}

func (s *surfaceState) clearCachedImage() {
	s.cacheMu.Lock()
	s.cachedImage = nil
	s.cacheMu.Unlock()
}

// NewSurfaceNode creates a surface node. An empty name defaults to
// "SurfaceNode".
func NewSurfaceNode(id NodeID, cfg SurfaceConfig) *Node {
	if cfg.Name == "" {
		cfg.Name = "SurfaceNode"
	}
	n := &Node{id: id, kind: KindSurface}
	nodeDefaults(n)
	n.surface = newSurfaceState(cfg)
	return n
}

// --- Identity and type ---

// SurfaceName returns the surface name, or "" for other kinds.
func (n *Node) SurfaceName() string {
	if n.surface == nil {
		return ""
	}
	return n.surface.name
}

// SurfaceNodeType returns the surface type.
func (n *Node) SurfaceNodeType() SurfaceNodeType {
	if n.surface == nil {
		return SurfaceDefault
	}
	return n.surface.nodeType
}

// SetSurfaceNodeType changes the surface type. An ability component keeps
// its type.
func (n *Node) SetSurfaceNodeType(t SurfaceNodeType) {
	if n.surface == nil || n.surface.nodeType == SurfaceAbilityComponent {
		return
	}
	n.surface.nodeType = t
}

// IsAppWindow reports whether n is an application window surface.
func (n *Node) IsAppWindow() bool {
	return n.surface != nil && n.surface.nodeType == SurfaceAppWindow
}

// IsFocusedWindow reports whether n belongs to the focused owner.
func (n *Node) IsFocusedWindow(focusedOwner uint32) bool {
	return n.id.Owner() == focusedOwner
}

// SurfaceDirtyManager returns the damage accumulator owned by a surface.
func (n *Node) SurfaceDirtyManager() *DirtyRegionManager {
	if n.surface == nil {
		return nil
	}
	return n.surface.dirtyManager
}

func (n *Node) SetSurfaceOffset(x, y int) {
	if n.surface == nil {
		return
	}
	n.surface.offsetX, n.surface.offsetY = x, y
}

func (n *Node) SurfaceOffset() (int, int) {
	if n.surface == nil {
		return 0, 0
	}
	return n.surface.offsetX, n.surface.offsetY
}

// SetSecurityLayer marks a surface whose content must never be captured.
func (n *Node) SetSecurityLayer(on bool) {
	if n.surface != nil {
		n.surface.security = on
	}
}

func (n *Node) IsSecurityLayer() bool { return n.surface != nil && n.surface.security }

func (n *Node) SetColorSpace(c ColorGamut) {
	if n.surface != nil {
		n.surface.colorSpace = c
	}
}

func (n *Node) ColorSpace() ColorGamut {
	if n.surface == nil {
		return ColorGamutSRGB
	}
	return n.surface.colorSpace
}

// UpdateSurfaceDefaultSize records the size buffers are requested with.
func (n *Node) UpdateSurfaceDefaultSize(width, height float64) {
	if n.surface != nil {
		n.surface.defaultWidth, n.surface.defaultHeight = width, height
	}
}

func (n *Node) SurfaceDefaultSize() (float64, float64) {
	if n.surface == nil {
		return 0, 0
	}
	return n.surface.defaultWidth, n.surface.defaultHeight
}

// SetHasBuffer records whether the surface's consumer holds a buffer.
// Only surfaces with a buffer are collected outside unified render.
func (n *Node) SetHasBuffer(has bool) {
	if n.surface != nil {
		n.surface.hasBuffer = has
		if has {
			n.surface.background = false
		}
	}
}

func (n *Node) HasBuffer() bool { return n.surface != nil && n.surface.hasBuffer }

// SetTunnelHandle marks a surface fed by a hardware tunnel. Tunneled
// surfaces are never collected.
func (n *Node) SetTunnelHandle(on bool) {
	if n.surface != nil && n.surface.tunnelHandle != on {
		n.surface.tunnelHandle = on
		n.tunnelHandleChanged = true
	}
}

// IsBackground reports whether the surface's consumer was sent to the
// background when it left the tree.
func (n *Node) IsBackground() bool { return n.surface != nil && n.surface.background }

func (s *surfaceState) goBackground() {
	s.background = true
	s.hasBuffer = false
}

// resetSurfaceParent runs the surface-specific part of ResetParent. A
// leash window sends its surface children to the background; any other
// drawn-by-owner surface goes to the background itself.
func (n *Node) resetSurfaceParent() {
	s := n.surface
	if s.nodeType == SurfaceLeashWindow {
		for _, child := range n.SortedChildren() {
			if child.surface != nil {
				child.surface.goBackground()
			}
		}
		return
	}
	switch s.nodeType {
	case SurfaceSelfDrawing, SurfaceSelfDrawingWindow, SurfaceAbilityComponent:
	default:
		s.goBackground()
	}
}

// --- Context from the parent scene ---

// SetContextMatrix stores the matrix inherited from the scene above. When
// it changes the node is marked dirty and, with a non-nil sink, the change
// is sent on.
func (n *Node) SetContextMatrix(m Matrix, sink CommandSink) {
	s := n.surface
	if s == nil || s.contextMatrix.Equal(m) {
		return
	}
	s.contextMatrix = m
	n.SetDirty()
	if sink != nil {
		sink.Send(SetContextMatrixCmd{ID: n.id, M: m}, n.id, FollowToSelf)
	}
}

func (n *Node) ContextMatrix() Matrix {
	if n.surface == nil {
		return IdentityMatrix
	}
	return n.surface.contextMatrix
}

// SetContextAlpha stores the inherited alpha, following SetContextMatrix.
func (n *Node) SetContextAlpha(alpha float64, sink CommandSink) {
	s := n.surface
	if s == nil || s.contextAlpha == alpha {
		return
	}
	s.contextAlpha = alpha
	n.SetDirty()
	if sink != nil {
		sink.Send(SetContextAlphaCmd{ID: n.id, Alpha: alpha}, n.id, FollowToSelf)
	}
}

func (n *Node) ContextAlpha() float64 {
	if n.surface == nil {
		return 1
	}
	return n.surface.contextAlpha
}

// SetContextClipRegion stores the inherited clip, following
// SetContextMatrix.
func (n *Node) SetContextClipRegion(clip Rect, sink CommandSink) {
	s := n.surface
	if s == nil || s.contextClip == clip {
		return
	}
	s.contextClip = clip
	n.SetDirty()
	if sink != nil {
		sink.Send(SetContextClipRegionCmd{ID: n.id, Clip: clip}, n.id, FollowToSelf)
	}
}

func (n *Node) ContextClipRegion() Rect {
	if n.surface == nil {
		return Rect{}
	}
	return n.surface.contextClip
}

// SetContextBounds always sends the bounds; nothing is stored locally.
func (n *Node) SetContextBounds(bounds Rect, sink CommandSink) {
	if n.surface == nil || sink == nil {
		return
	}
	sink.Send(SetContextBoundsCmd{ID: n.id, Bounds: bounds}, n.id, FollowToSelf)
}

// --- Compositor state ---

func (n *Node) SetTotalMatrix(m Matrix) {
	if n.surface != nil {
		n.surface.totalMatrix = m
	}
}

// TotalMatrix returns the device matrix recorded by the last prepare.
func (n *Node) TotalMatrix() Matrix {
	if n.surface == nil {
		return IdentityMatrix
	}
	return n.surface.totalMatrix
}

func (n *Node) SetSrcRect(r RectI) {
	if n.surface != nil {
		n.surface.srcRect = r
	}
}

func (n *Node) SrcRect() RectI {
	if n.surface == nil {
		return RectI{}
	}
	return n.surface.srcRect
}

// SetDstRect records the on-screen rect and flags a change.
func (n *Node) SetDstRect(r RectI) {
	s := n.surface
	if s == nil {
		return
	}
	if s.dstRect != r {
		s.dstRectChanged = true
	}
	s.dstRect = r
}

func (n *Node) DstRect() RectI {
	if n.surface == nil {
		return RectI{}
	}
	return n.surface.dstRect
}

func (n *Node) DstRectChanged() bool { return n.surface != nil && n.surface.dstRectChanged }

func (n *Node) CleanDstRectChanged() {
	if n.surface != nil {
		n.surface.dstRectChanged = false
	}
}

// SetGlobalAlpha records the composited alpha and flags a change.
func (n *Node) SetGlobalAlpha(alpha float64) {
	s := n.surface
	if s == nil || s.globalAlpha == alpha {
		return
	}
	s.alphaChanged = true
	s.globalAlpha = alpha
}

func (n *Node) GlobalAlpha() float64 {
	if n.surface == nil {
		return 1
	}
	return n.surface.globalAlpha
}

func (n *Node) AlphaChanged() bool { return n.surface != nil && n.surface.alphaChanged }

func (n *Node) CleanAlphaChanged() {
	if n.surface != nil {
		n.surface.alphaChanged = false
	}
}

// SetAbilityBgAlpha sets the declared background alpha of the surface
// content.
func (n *Node) SetAbilityBgAlpha(alpha uint8) {
	if n.surface == nil {
		return
	}
	n.surface.abilityBgAlpha = alpha
	n.surface.alphaChanged = true
}

func (n *Node) AbilityBgAlpha() uint8 {
	if n.surface == nil {
		return 0
	}
	return n.surface.abilityBgAlpha
}

// IsTransparent reports whether anything below the surface can show
// through it.
func (n *Node) IsTransparent() bool {
	if n.surface == nil {
		return true
	}
	return !(n.surface.abilityBgAlpha == opaqueAbilityAlpha && nearlyEqual(n.surface.globalAlpha, 1))
}

// --- Z order ---

// ZOrderChanged reports whether position Z moved since UpdatePositionZ.
func (n *Node) ZOrderChanged() bool {
	if n.surface == nil || n.props == nil {
		return false
	}
	return math.Abs(n.props.PositionZ-n.surface.positionZ) > floatEpsilon
}

// IsZOrderPromoted reports whether the surface moved up since
// UpdatePositionZ.
func (n *Node) IsZOrderPromoted() bool {
	if n.surface == nil || n.props == nil {
		return false
	}
	return n.props.PositionZ > n.surface.positionZ
}

func (n *Node) UpdatePositionZ() {
	if n.surface != nil && n.props != nil {
		n.surface.positionZ = n.props.PositionZ
	}
}

// --- Buffer availability ---

// RegisterBufferAvailableListener installs the callback run when a buffer
// first becomes available. fromRenderThread selects the render-thread slot,
// otherwise the UI slot is used.
func (n *Node) RegisterBufferAvailableListener(cb BufferAvailableFunc, fromRenderThread bool) {
	s := n.surface
	if s == nil {
		return
	}
	s.mu.Lock()
	if fromRenderThread {
		s.callbackFromRT = cb
	} else {
		s.callbackFromUI = cb
	}
	s.mu.Unlock()
}

// NotifyRTBufferAvailable records that the render side has a buffer. The
// first notification runs the refresh and render-thread callbacks; with
// neither installed the flag stays unset so a later listener still fires.
func (n *Node) NotifyRTBufferAvailable() {
	s := n.surface
	if s == nil {
		return
	}
	s.rtAvailablePre = s.rtAvailable.Load()
	if s.rtAvailablePre {
		return
	}
	s.rtAvailable.Store(true)
	if s.refreshCallback != nil {
		Logger().Info("buffer available, refreshing render thread", "node", n.id)
		s.refreshCallback()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callbackFromRT != nil {
		Logger().Info("buffer available", "node", n.id)
		s.callbackFromRT()
	}
	if s.refreshCallback == nil && s.callbackFromRT == nil {
		s.rtAvailable.Store(false)
	}
}

// IsNotifyRTBufferAvailable reports the current render-thread flag.
func (n *Node) IsNotifyRTBufferAvailable() bool {
	return n.surface != nil && n.surface.rtAvailable.Load()
}

// IsNotifyRTBufferAvailablePre reports the flag as it was before the last
// NotifyRTBufferAvailable.
func (n *Node) IsNotifyRTBufferAvailablePre() bool {
	return n.surface != nil && n.surface.rtAvailablePre
}

// NotifyUIBufferAvailable runs the UI callback once per availability.
func (n *Node) NotifyUIBufferAvailable() {
	s := n.surface
	if s == nil || s.uiAvailable.Load() {
		return
	}
	s.uiAvailable.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callbackFromUI != nil {
		Logger().Debug("ui buffer available", "node", n.id)
		s.callbackFromUI()
		return
	}
	s.uiAvailable.Store(false)
}

func (n *Node) IsNotifyUIBufferAvailable() bool {
	return n.surface != nil && n.surface.uiAvailable.Load()
}

func (n *Node) SetIsNotifyUIBufferAvailable(available bool) {
	if n.surface != nil {
		n.surface.uiAvailable.Store(available)
	}
}

// SetCallbackForRenderThreadRefresh installs the callback that forces the
// render thread to run another frame once a buffer arrives.
func (n *Node) SetCallbackForRenderThreadRefresh(cb func()) {
	if n.surface != nil {
		n.surface.refreshCallback = cb
	}
}

// NeedSetCallbackForRenderThreadRefresh reports whether no refresh
// callback is installed yet.
func (n *Node) NeedSetCallbackForRenderThreadRefresh() bool {
	return n.surface != nil && n.surface.refreshCallback == nil
}

func (n *Node) IsStartAnimationFinished() bool {
	return n.surface != nil && n.surface.startAnimFinished
}

func (n *Node) SetStartAnimationFinished() {
	if n.surface != nil {
		Logger().Debug("start animation finished", "node", n.id)
		n.surface.startAnimFinished = true
	}
}

// SetAppFreeze marks a window whose app is frozen. Frozen windows are
// captured from their cached image.
func (n *Node) SetAppFreeze(on bool) {
	if n.surface != nil {
		n.surface.appFreeze.Store(on)
	}
}

func (n *Node) IsAppFreeze() bool { return n.surface != nil && n.surface.appFreeze.Load() }

// --- Child surface ids ---

// ChildSurfaceIDs returns the child surface ids published last frame.
func (n *Node) ChildSurfaceIDs() []NodeID {
	if n.surface == nil {
		return nil
	}
	return n.surface.childSurfaceIDs
}

// --- Cached image ---

// SetCachedImage stores a snapshot of the surface and marks it dirty.
func (n *Node) SetCachedImage(img image.Image) {
	if n.surface == nil {
		return
	}
	n.SetDirty()
	n.surface.cacheMu.Lock()
	n.surface.cachedImage = img
	n.surface.cacheMu.Unlock()
}

func (n *Node) CachedImage() image.Image {
	if n.surface == nil {
		return nil
	}
	n.surface.cacheMu.Lock()
	defer n.surface.cacheMu.Unlock()
	return n.surface.cachedImage
}

func (n *Node) ClearCachedImage() {
	if n.surface != nil {
		n.surface.clearCachedImage()
	}
}

// ParallelVisitLock serializes independent traversals over one surface.
// The render thread blocks on it; captures use ParallelVisitTryLock.
func (n *Node) ParallelVisitLock() {
	if n.surface != nil {
		n.surface.parallelVisitLock.Lock()
	}
}

// ParallelVisitTryLock takes the visit lock without waiting and reports
// whether it did. Nodes without surface state always succeed.
func (n *Node) ParallelVisitTryLock() bool {
	if n.surface == nil {
		return true
	}
	return n.surface.parallelVisitLock.TryLock()
}

func (n *Node) ParallelVisitUnlock() {
	if n.surface != nil {
		n.surface.parallelVisitLock.Unlock()
	}
}

// --- Container window ---

// SetContainerWindow records whether the window has a decoration container
// and scales the decoration sizes by density.
func (n *Node) SetContainerWindow(has bool, density float64) {
	s := n.surface
	if s == nil {
		return
	}
	s.hasContainer = has
	px := func(vp int) int { return int(math.Ceil(float64(vp) * density)) }
	s.titleHeight = px(containerTitleHeight)
	s.contentPadding = px(containerContentPad)
	s.borderWidth = px(containerBorderWidth)
	s.outerRadius = px(containerOuterRadius)
	s.innerRadius = px(containerInnerRadius)
}

func (n *Node) HasContainerWindow() bool { return n.surface != nil && n.surface.hasContainer }

// --- Occlusion ---

func (n *Node) SetOcclusionVisible(visible bool) {
	if n.surface != nil {
		n.surface.occlusionVisible = visible
	}
}

// OcclusionVisible reports whether any part of the surface survived the
// last occlusion pass.
func (n *Node) OcclusionVisible() bool { return n.surface == nil || n.surface.occlusionVisible }

func (n *Node) VisibleRegion() Region {
	if n.surface == nil {
		return Region{}
	}
	return n.surface.visibleRegion
}

func (n *Node) OpaqueRegion() Region {
	if n.surface == nil {
		return Region{}
	}
	return n.surface.opaqueRegion
}

func (n *Node) TransparentRegion() Region {
	if n.surface == nil {
		return Region{}
	}
	return n.surface.transparentRegion
}

func (n *Node) IsOpaqueRegionChanged() bool { return n.surface != nil && n.surface.opaqueChanged }

func (n *Node) VisibleDirtyRegion() Region {
	if n.surface == nil {
		return Region{}
	}
	return n.surface.visibleDirtyRegion
}

func (n *Node) SetVisibleDirtyRegion(rg Region) {
	if n.surface != nil {
		n.surface.visibleDirtyRegion = rg
	}
}

// SetGlobalDirtyRegion keeps the part of the frame damage r that is
// visible on this surface.
func (n *Node) SetGlobalDirtyRegion(r RectI) {
	s := n.surface
	if s == nil {
		return
	}
	s.globalDirtyRegion = s.visibleRegion.And(RegionFromRect(r))
	s.globalDirtyEmpty = s.globalDirtyRegion.IsEmpty()
}

func (n *Node) GlobalDirtyRegion() Region {
	if n.surface == nil {
		return Region{}
	}
	return n.surface.globalDirtyRegion
}

// SetDirtyRegionBelowCurrentLayer keeps the part of the damage below this
// layer that falls inside its previous footprint.
func (n *Node) SetDirtyRegionBelowCurrentLayer(below Region) {
	s := n.surface
	if s == nil {
		return
	}
	s.dirtyBelow = RegionFromRect(n.oldDirtyInSurface).And(below)
	s.dirtyBelowEmpty = s.dirtyBelow.IsEmpty()
}

func (n *Node) DirtyRegionBelowCurrentLayer() Region {
	if n.surface == nil {
		return Region{}
	}
	return n.surface.dirtyBelow
}

// SetQosCal enables collecting per-owner visibility in
// SetVisibleRegionRecursive.
func (n *Node) SetQosCal(on bool) {
	if n.surface != nil {
		n.surface.qosPidCal = on
	}
}

// SetVisibleRegionRecursive assigns region to the surface and its surface
// children. Ids of visible surfaces are appended to visible, which is
// returned. When ownerVis is non-nil and owner collection is enabled, each
// owner's entry is or-ed with the surface visibility. Self-drawing and
// ability component surfaces are always visible and keep their region.
func (n *Node) SetVisibleRegionRecursive(region Region, visible []NodeID, ownerVis map[uint32]bool) []NodeID {
	s := n.surface
	if s == nil {
		return visible
	}
	if s.nodeType == SurfaceSelfDrawing || s.nodeType == SurfaceAbilityComponent {
		s.occlusionVisible = true
		return visible
	}
	s.visibleRegion = region
	vis := region.Size() > 0
	if vis {
		visible = append(visible, n.id)
	}
	if s.qosPidCal && ownerVis != nil {
		ownerVis[n.id.Owner()] = ownerVis[n.id.Owner()] || vis
	}
	s.occlusionVisible = vis
	for _, child := range n.SortedChildren() {
		if child.surface != nil {
			visible = child.SetVisibleRegionRecursive(region, visible, ownerVis)
		}
	}
	return visible
}

// SubNodeVisible reports whether r touches the visible region.
func (n *Node) SubNodeVisible(r RectI) bool {
	if n.surface == nil {
		return true
	}
	return n.surface.visibleRegion.IsIntersectWith(RegionFromRect(r))
}

// SubNodeIntersectWithDirty reports whether r must be redrawn: it touches
// the global or visible damage, or the surface lets damage below it show
// through at r.
func (n *Node) SubNodeIntersectWithDirty(r RectI) bool {
	s := n.surface
	if s == nil {
		return true
	}
	rg := RegionFromRect(r)
	if !s.globalDirtyEmpty && s.globalDirtyRegion.IsIntersectWith(rg) {
		return true
	}
	if s.visibleDirtyRegion.IsIntersectWith(rg) {
		return true
	}
	if n.IsTransparent() || s.transparentRegion.IsIntersectWith(rg) {
		return s.dirtyBelow.IsIntersectWith(rg)
	}
	return false
}

// SubNodeNeedDraw decides whether a descendant covering r is painted under
// the given partial render policy.
func (n *Node) SubNodeNeedDraw(r RectI, policy PartialRenderType) bool {
	if n.surface == nil || n.surface.dirtyManager == nil || r.IsEmpty() {
		return true
	}
	switch policy {
	case PartialRenderSetDamageAndDropOp:
		return n.SubNodeIntersectWithDirty(r)
	case PartialRenderSetDamageAndDropOpOcclusion:
		return n.SubNodeVisible(r)
	case PartialRenderSetDamageAndDropOpNotVisibleDirty:
		return n.SubNodeVisible(r) && n.SubNodeIntersectWithDirty(r)
	}
	return true
}

// ResetOpaqueRegion computes the opaque part of a container window at abs.
func (n *Node) ResetOpaqueRegion(abs RectI, cfg ContainerWindowConfig, focused bool) Region {
	s := n.surface
	if cfg == ContainerWindowDisabled || s == nil {
		return RegionFromRect(abs)
	}
	left, top, right, bottom := abs.Left, abs.Top, abs.Right(), abs.Bottom()
	switch {
	case focused:
		return NewRegion(RegionRect{
			Left:   left + s.contentPadding + s.borderWidth,
			Top:    top + s.titleHeight + s.innerRadius + s.borderWidth,
			Right:  right - s.contentPadding - s.borderWidth,
			Bottom: bottom - s.contentPadding - s.borderWidth,
		})
	case cfg == ContainerWindowLevel0:
		return NewRegion(RegionRect{
			Left:   left + s.contentPadding + s.borderWidth,
			Top:    top + s.titleHeight + s.borderWidth,
			Right:  right - s.contentPadding - s.borderWidth,
			Bottom: bottom - s.contentPadding - s.borderWidth,
		})
	case cfg == ContainerWindowUnfocusedLevel1:
		return NewRegion(RegionRect{Left: left, Top: top + s.outerRadius, Right: right, Bottom: bottom - s.outerRadius})
	default:
		wide := NewRegion(RegionRect{Left: left, Top: top + s.outerRadius, Right: right, Bottom: bottom - s.outerRadius})
		tall := NewRegion(RegionRect{Left: left + s.outerRadius, Top: top, Right: right - s.outerRadius, Bottom: bottom})
		return tall.Or(wide)
	}
}

// ResetSurfaceOpaqueRegion splits abs into opaque and transparent regions,
// both clipped to screen, and records whether the opaque region changed.
func (n *Node) ResetSurfaceOpaqueRegion(screen, abs RectI, cfg ContainerWindowConfig, focused bool) {
	s := n.surface
	if s == nil {
		return
	}
	old := s.opaqueRegion
	absRegion := RegionFromRect(abs)
	if n.IsTransparent() {
		s.opaqueRegion = Region{}
		s.transparentRegion = absRegion
	} else {
		if n.IsAppWindow() && s.hasContainer {
			s.opaqueRegion = n.ResetOpaqueRegion(abs, cfg, focused)
		} else {
			s.opaqueRegion = absRegion
		}
		s.transparentRegion = absRegion.Sub(s.opaqueRegion)
	}
	screenRegion := RegionFromRect(screen)
	s.transparentRegion = s.transparentRegion.And(screenRegion)
	s.opaqueRegion = s.opaqueRegion.And(screenRegion)
	s.opaqueChanged = !old.Xor(s.opaqueRegion).IsEmpty()
}

// --- Collection ---

// CollectSurface appends the surfaces that composite on their own, in
// paint order, to out and returns it.
func (n *Node) CollectSurface(out []*Node, uniRender bool) []*Node {
	if n.surface == nil {
		for _, child := range n.SortedChildren() {
			out = child.CollectSurface(out, uniRender)
		}
		return out
	}
	switch n.surface.nodeType {
	case SurfaceStartingWindow:
		if uniRender {
			out = append(out, n)
		}
		return out
	case SurfaceLeashWindow:
		for _, child := range n.SortedChildren() {
			out = child.CollectSurface(out, uniRender)
		}
		return out
	}
	if n.surface.tunnelHandle {
		return out
	}
	for _, c := range out {
		if c == n {
			return out
		}
	}
	if !n.ShouldPaint() {
		return out
	}
	if uniRender || n.surface.hasBuffer {
		out = append(out, n)
	}
	return out
}

// --- Prepare ---

// PrepareRenderBeforeChildren applies the inherited context and the
// node's own transform to c, then records the src and dst rects, total
// matrix and alpha the compositor needs.
func (n *Node) PrepareRenderBeforeChildren(c *PaintCanvas) {
	s := n.surface
	if s == nil || n.props == nil {
		return
	}
	n.renderSave = c.SaveCanvasAndAlpha()

	c.MultiplyAlpha(s.contextAlpha)
	c.Concat(s.contextMatrix)
	if s.contextClip.Width > floatEpsilon && s.contextClip.Height > floatEpsilon {
		c.ClipRect(s.contextClip)
	}

	p := n.props
	c.MultiplyAlpha(p.Alpha)
	m := p.Matrix()
	m[4], m[5] = math.Ceil(m[4]), math.Ceil(m[5])
	c.Concat(m)

	bw, bh := p.Bounds.Width, p.Bounds.Height
	c.ClipRect(Rect{Width: math.Floor(bw), Height: math.Floor(bh)})

	local := localClipBounds(c)
	n.SetSrcRect(RectI{
		Left:   clampInt(int(local.X), 0, int(bw)),
		Top:    clampInt(int(local.Y), 0, int(bh)),
		Width:  clampInt(int(local.Width), 0, int(bw-local.X)),
		Height: clampInt(int(local.Height), 0, int(bh-local.Y)),
	})
	n.SetDstRect(c.DeviceClipBounds())

	n.SetTotalMatrix(c.TotalMatrix())
	n.SetGlobalAlpha(c.Alpha())
}

// PrepareRenderAfterChildren undoes PrepareRenderBeforeChildren.
func (n *Node) PrepareRenderAfterChildren(c *PaintCanvas) {
	c.RestoreCanvasAndAlpha(n.renderSave)
}

// localClipBounds maps the device clip back into the current local space.
// It is empty when the clip is empty or the matrix cannot be inverted.
func localClipBounds(c Canvas) Rect {
	dev := c.DeviceClipBounds()
	if dev.IsEmpty() {
		return Rect{}
	}
	inv, ok := c.TotalMatrix().Invert()
	if !ok {
		return Rect{}
	}
	return inv.MapRect(dev.Rect())
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}
