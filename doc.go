// Package trellis is a retained render-node scene graph with a two-pass
// traversal engine, in the style of a compositor's render service.
//
// # Node tree
//
// Every element is a [Node]. Its [NodeKind] selects which capabilities it
// has: base nodes only hold children, render nodes carry [Properties] and
// modifiers, canvas nodes paint, surface nodes stand for a window buffer,
// proxy nodes relay a surface's placement, root nodes paint a window into a
// [RenderSurface] and display nodes collect the surfaces of one screen.
//
//	reg := trellis.NewRegistry()
//	root := trellis.NewRootNode(1)
//	card := trellis.NewCanvasNode(2)
//	root.AddChild(card, -1)
//	reg.RegisterNode(root)
//	reg.RegisterNode(card)
//
// Children are painted in ascending position Z, ties keeping insertion
// order. A child removed while an exit animation runs stays in its parent's
// disappearing list and keeps painting until the animation ends.
//
// # Traversal
//
// Both passes are driven by a [Visitor]. Prepare applies modifiers,
// recomputes geometry and accumulates damage; Process paints. The
// [RenderThreadVisitor] paints roots into their RenderSurface, limiting
// work to the damaged area when partial render is configured, and sends
// the placement of every surface it meets through a [CommandSink]:
//
//	scene := trellis.NewScene(trellis.DefaultConfig())
//	mirror := trellis.NewScene(trellis.DefaultConfig())
//	scene.SetFlushHandler(mirror.Apply)
//	scene.Render(time.Now())
//
// # Composition
//
// [Scene.Compose] places the surfaces of a display and
// [Scene.CalculateOcclusion] assigns each one the region not hidden by the
// opaque surfaces above it. [CaptureTask] renders a surface or a display
// into an image.
//
// # Configuration and observability
//
// [Config] is read from TOML with [LoadConfig]. Diagnostics are written to
// the [log/slog] logger installed with [SetLogger]; frame counters and
// timings are exported as Prometheus collectors on the default registry.
package trellis
