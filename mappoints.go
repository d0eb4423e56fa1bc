package mapshine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Group types stored on the wire. Rope behaves like line for queries; the
// distinction matters to overlay styling only.
const (
	GroupTypePoint = "point"
	GroupTypeLine  = "line"
	GroupTypeArea  = "area"
	GroupTypeRope  = "rope"
)

// Effect target keys that groups bind to through EffectTarget.
const (
	EffectTargetLightning    = "lightning"
	EffectTargetIllumination = "illumination"
	EffectTargetSwarm        = "swarm"
)

const (
	mapPointsSettingsKey = "mapPoints"
	mapPointsFileVersion = 2
)

// EmissionFalloff shapes how a group's light fades with distance.
type EmissionFalloff struct {
	Enabled  bool
	Strength float64
}

// Emission describes how strongly a group's points radiate light when the
// group feeds the illumination effect.
type Emission struct {
	Intensity float64
	Falloff   EmissionFalloff
}

// MapPointGroup is one persisted geometry group: loose points, a
// polyline, or a closed area, optionally feeding an effect. Points are in
// host world coordinates. Version increases on every successful mutation.
type MapPointGroup struct {
	ID             string
	Label          string
	Type           string
	Points         []Vec2
	IsEffectSource bool
	EffectTarget   string
	Emission       Emission
	Version        int
}

// minGroupPoints returns the smallest valid point count for a group type,
// or -1 for an unknown type.
func minGroupPoints(groupType string) int {
	switch groupType {
	case GroupTypePoint:
		return 1
	case GroupTypeLine, GroupTypeRope:
		return 2
	case GroupTypeArea:
		return 3
	}
	return -1
}

func validateGroup(g *MapPointGroup) error {
	need := minGroupPoints(g.Type)
	if need < 0 {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidGroup, g.Type)
	}
	if len(g.Points) < need {
		return fmt.Errorf("%w: %s group needs at least %d points, has %d",
			ErrInvalidGroup, g.Type, need, len(g.Points))
	}
	return nil
}

// --- Wire shape ---

type mapPointDoc struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type emissionFalloffDoc struct {
	Enabled  bool    `json:"enabled"`
	Strength float64 `json:"strength"`
}

type emissionDoc struct {
	Intensity float64            `json:"intensity"`
	Falloff   emissionFalloffDoc `json:"falloff"`
}

type mapPointGroupDoc struct {
	ID             string        `json:"id"`
	Label          string        `json:"label,omitempty"`
	Type           string        `json:"type"`
	Points         []mapPointDoc `json:"points"`
	IsEffectSource bool          `json:"isEffectSource,omitempty"`
	EffectTarget   string        `json:"effectTarget,omitempty"`
	Emission       *emissionDoc  `json:"emission,omitempty"`
	Version        int           `json:"version,omitempty"`
}

type mapPointsFileDoc struct {
	Version int                `json:"version,omitempty"`
	Groups  []mapPointGroupDoc `json:"groups"`
}

func groupToDoc(g *MapPointGroup) mapPointGroupDoc {
	doc := mapPointGroupDoc{
		ID:             g.ID,
		Label:          g.Label,
		Type:           g.Type,
		Points:         make([]mapPointDoc, len(g.Points)),
		IsEffectSource: g.IsEffectSource,
		EffectTarget:   g.EffectTarget,
		Version:        g.Version,
	}
	for i, p := range g.Points {
		doc.Points[i] = mapPointDoc{X: p.X, Y: p.Y}
	}
	doc.Emission = &emissionDoc{
		Intensity: g.Emission.Intensity,
		Falloff: emissionFalloffDoc{
			Enabled:  g.Emission.Falloff.Enabled,
			Strength: g.Emission.Falloff.Strength,
		},
	}
	return doc
}

// groupFromDoc converts a wire group, migrating v1 records: missing
// version becomes 1, the id doubles as label, and emission defaults to a
// full-intensity falloff so flipping isEffectSource later just works.
func groupFromDoc(doc mapPointGroupDoc) MapPointGroup {
	g := MapPointGroup{
		ID:             doc.ID,
		Label:          doc.Label,
		Type:           doc.Type,
		Points:         make([]Vec2, len(doc.Points)),
		IsEffectSource: doc.IsEffectSource,
		EffectTarget:   doc.EffectTarget,
		Version:        doc.Version,
	}
	for i, p := range doc.Points {
		g.Points[i] = Vec2{X: p.X, Y: p.Y}
	}
	if doc.Emission != nil {
		g.Emission = Emission{
			Intensity: doc.Emission.Intensity,
			Falloff: EmissionFalloff{
				Enabled:  doc.Emission.Falloff.Enabled,
				Strength: doc.Emission.Falloff.Strength,
			},
		}
	} else {
		g.Emission = Emission{Intensity: 1, Falloff: EmissionFalloff{Enabled: true, Strength: 1}}
	}
	if g.Version < 1 {
		g.Version = 1
	}
	if g.Label == "" {
		g.Label = g.ID
	}
	return g
}

// --- Change stream ---

// MapPointsEventKind tags a change-stream event.
type MapPointsEventKind uint8

const (
	MapPointsCreated MapPointsEventKind = iota
	MapPointsUpdated
	MapPointsDeleted
	// MapPointsReloaded fires once after the store replaces its state from
	// the host; Group carries no data.
	MapPointsReloaded
)

func (k MapPointsEventKind) String() string {
	switch k {
	case MapPointsCreated:
		return "created"
	case MapPointsUpdated:
		return "updated"
	case MapPointsDeleted:
		return "deleted"
	case MapPointsReloaded:
		return "reloaded"
	}
	return "unknown"
}

// MapPointsEvent is delivered to subscribers after a successful
// persistence. Group is a copy; deleted events carry the last state.
type MapPointsEvent struct {
	Kind  MapPointsEventKind
	Group MapPointGroup
}

type mapPointsListener struct {
	id int
	fn func(MapPointsEvent)
}

// MapPointsStore persists vector geometry groups under the scene settings
// and answers effect queries over them. Mutators are serialized through a
// per-store FIFO so a mutation issued from inside a change listener runs
// after the active one commits, and every mutation persists the whole
// prospective state before touching memory: a refused write changes
// nothing.
type MapPointsStore struct {
	host Host

	groups map[string]*MapPointGroup
	order  []string

	listeners  []mapPointsListener
	nextListID int

	queue    []func() bool
	draining bool

	nextGroupSeq int

	offs []func()
}

// NewMapPointsStore creates a store bound to the host event bus; state
// loads on canvasReady and reloads when the scene document updates.
func NewMapPointsStore(host Host) *MapPointsStore {
	s := &MapPointsStore{
		host:   host,
		groups: make(map[string]*MapPointGroup),
	}
	ev := host.Events()
	s.offs = append(s.offs,
		ev.On(HookCanvasReady, func(any) { s.Reload() }),
		ev.On(HookUpdateScene, func(any) { s.Reload() }),
	)
	return s
}

// Dispose unsubscribes from the host bus.
func (s *MapPointsStore) Dispose() {
	for _, off := range s.offs {
		off()
	}
	s.offs = nil
}

// Subscribe registers fn on the change stream and returns the remover.
func (s *MapPointsStore) Subscribe(fn func(MapPointsEvent)) (off func()) {
	s.nextListID++
	id := s.nextListID
	s.listeners = append(s.listeners, mapPointsListener{id: id, fn: fn})
	return func() {
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// fire delivers ev to every listener. A panicking listener is logged and
// skipped; the rest still run.
func (s *MapPointsStore) fire(ev MapPointsEvent) {
	for _, l := range s.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					_, _ = fmt.Fprintf(os.Stderr, "[mapshine] map points: %s listener panicked: %v\n", ev.Kind, r)
				}
			}()
			l.fn(ev)
		}()
	}
}

// Reload replaces the store state from the host settings, migrating v1
// records. Groups that fail validation are dropped with a log line.
func (s *MapPointsStore) Reload() {
	s.groups = make(map[string]*MapPointGroup)
	s.order = s.order[:0]

	raw, ok := s.host.Settings().Get(mapPointsSettingsKey)
	if ok {
		var data []byte
		switch v := raw.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		}
		if len(data) > 0 {
			var file mapPointsFileDoc
			if err := json.Unmarshal(data, &file); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "[mapshine] map points: stored record unreadable: %v\n", err)
			} else {
				for _, doc := range file.Groups {
					g := groupFromDoc(doc)
					if err := validateGroup(&g); err != nil {
						_, _ = fmt.Fprintf(os.Stderr, "[mapshine] map points: dropping group %q: %v\n", g.ID, err)
						continue
					}
					gc := g
					s.groups[g.ID] = &gc
					s.order = append(s.order, g.ID)
				}
			}
		}
	}
	s.fire(MapPointsEvent{Kind: MapPointsReloaded})
}

// enqueue runs op through the FIFO. Reentrant calls (from listeners) are
// deferred until the active op finishes and report acceptance.
func (s *MapPointsStore) enqueue(op func() bool) bool {
	if s.draining {
		s.queue = append(s.queue, op)
		return true
	}
	s.draining = true
	ok := op()
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		next()
	}
	s.draining = false
	return ok
}

// cloneState deep-copies the group map and order for a prospective write.
func (s *MapPointsStore) cloneState() (map[string]*MapPointGroup, []string) {
	next := make(map[string]*MapPointGroup, len(s.groups))
	for id, g := range s.groups {
		gc := *g
		gc.Points = append([]Vec2(nil), g.Points...)
		next[id] = &gc
	}
	order := append([]string(nil), s.order...)
	return next, order
}

// persist writes the prospective state to the host settings and commits it
// on success. A permission refusal warns the user and changes nothing.
func (s *MapPointsStore) persist(next map[string]*MapPointGroup, order []string) bool {
	file := mapPointsFileDoc{Version: mapPointsFileVersion, Groups: make([]mapPointGroupDoc, 0, len(order))}
	for _, id := range order {
		file.Groups = append(file.Groups, groupToDoc(next[id]))
	}
	data, err := json.Marshal(file)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[mapshine] map points: encode failed: %v\n", err)
		return false
	}
	if err := s.host.Settings().Set(mapPointsSettingsKey, string(data)); err != nil {
		if errors.Is(err, ErrPermission) {
			s.host.Notifier().Warn("Map points: you lack permission to edit point groups.")
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "[mapshine] map points: save failed: %v\n", err)
		}
		return false
	}
	s.groups = next
	s.order = order
	return true
}

// CreateGroup validates and persists a new group. An empty ID is assigned.
// Returns false when validation or the host write refuses; a call from
// inside a change listener is queued and reports acceptance.
func (s *MapPointsStore) CreateGroup(g MapPointGroup) bool {
	return s.enqueue(func() bool { return s.applyCreate(g) })
}

func (s *MapPointsStore) applyCreate(g MapPointGroup) bool {
	if g.ID == "" {
		for {
			s.nextGroupSeq++
			g.ID = fmt.Sprintf("group-%d", s.nextGroupSeq)
			if _, exists := s.groups[g.ID]; !exists {
				break
			}
		}
	}
	if _, exists := s.groups[g.ID]; exists {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: group %q already exists.", g.ID))
		return false
	}
	if err := validateGroup(&g); err != nil {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: %v", err))
		return false
	}
	if g.Version < 1 {
		g.Version = 1
	}
	if g.Label == "" {
		g.Label = g.ID
	}

	next, order := s.cloneState()
	gc := g
	gc.Points = append([]Vec2(nil), g.Points...)
	next[g.ID] = &gc
	order = append(order, g.ID)
	if !s.persist(next, order) {
		return false
	}
	s.fire(MapPointsEvent{Kind: MapPointsCreated, Group: g})
	return true
}

// UpdateGroup replaces an existing group's fields. The version is bumped
// monotonically regardless of the caller's value.
func (s *MapPointsStore) UpdateGroup(g MapPointGroup) bool {
	return s.enqueue(func() bool { return s.applyUpdate(g) })
}

func (s *MapPointsStore) applyUpdate(g MapPointGroup) bool {
	existing, ok := s.groups[g.ID]
	if !ok {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: group %q not found.", g.ID))
		return false
	}
	if err := validateGroup(&g); err != nil {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: %v", err))
		return false
	}
	g.Version = existing.Version + 1

	next, order := s.cloneState()
	gc := g
	gc.Points = append([]Vec2(nil), g.Points...)
	next[g.ID] = &gc
	if !s.persist(next, order) {
		return false
	}
	s.fire(MapPointsEvent{Kind: MapPointsUpdated, Group: g})
	return true
}

// DeleteGroup removes a group.
func (s *MapPointsStore) DeleteGroup(id string) bool {
	return s.enqueue(func() bool { return s.applyDelete(id) })
}

func (s *MapPointsStore) applyDelete(id string) bool {
	existing, ok := s.groups[id]
	if !ok {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: group %q not found.", id))
		return false
	}
	last := *existing
	last.Points = append([]Vec2(nil), existing.Points...)

	next, order := s.cloneState()
	delete(next, id)
	for i, oid := range order {
		if oid == id {
			order = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	if !s.persist(next, order) {
		return false
	}
	s.fire(MapPointsEvent{Kind: MapPointsDeleted, Group: last})
	return true
}

// AddPoint appends a point to a group.
func (s *MapPointsStore) AddPoint(id string, p Vec2) bool {
	return s.enqueue(func() bool { return s.applyAddPoint(id, p) })
}

func (s *MapPointsStore) applyAddPoint(id string, p Vec2) bool {
	if _, ok := s.groups[id]; !ok {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: group %q not found.", id))
		return false
	}

	next, order := s.cloneState()
	g := next[id]
	g.Points = append(g.Points, p)
	g.Version++
	updated := *g
	updated.Points = append([]Vec2(nil), g.Points...)
	if !s.persist(next, order) {
		return false
	}
	s.fire(MapPointsEvent{Kind: MapPointsUpdated, Group: updated})
	return true
}

// RemovePoint deletes the point at index. Removing the last point deletes
// the whole group; this is intended behavior, not a side effect.
func (s *MapPointsStore) RemovePoint(id string, index int) bool {
	return s.enqueue(func() bool { return s.applyRemovePoint(id, index) })
}

func (s *MapPointsStore) applyRemovePoint(id string, index int) bool {
	existing, ok := s.groups[id]
	if !ok {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: group %q not found.", id))
		return false
	}
	if index < 0 || index >= len(existing.Points) {
		s.host.Notifier().Warn(fmt.Sprintf("Map points: group %q has no point %d.", id, index))
		return false
	}
	if len(existing.Points) == 1 {
		return s.applyDelete(id)
	}

	next, order := s.cloneState()
	g := next[id]
	g.Points = append(g.Points[:index:index], g.Points[index+1:]...)
	g.Version++
	updated := *g
	updated.Points = append([]Vec2(nil), g.Points...)
	if !s.persist(next, order) {
		return false
	}
	s.fire(MapPointsEvent{Kind: MapPointsUpdated, Group: updated})
	return true
}

// --- Queries ---

// Group returns a copy of the group by id.
func (s *MapPointsStore) Group(id string) (MapPointGroup, bool) {
	g, ok := s.groups[id]
	if !ok {
		return MapPointGroup{}, false
	}
	gc := *g
	gc.Points = append([]Vec2(nil), g.Points...)
	return gc, true
}

// Groups returns copies of every group in creation order.
func (s *MapPointsStore) Groups() []MapPointGroup {
	out := make([]MapPointGroup, 0, len(s.order))
	for _, id := range s.order {
		g, _ := s.Group(id)
		out = append(out, g)
	}
	return out
}

// GroupsForEffect returns copies of the effect-source groups bound to the
// given target key.
func (s *MapPointsStore) GroupsForEffect(target string) []MapPointGroup {
	var out []MapPointGroup
	for _, id := range s.order {
		g := s.groups[id]
		if g.IsEffectSource && g.EffectTarget == target {
			gc, _ := s.Group(id)
			out = append(out, gc)
		}
	}
	return out
}

// PointsForEffect returns every point of point-type source groups bound
// to the target.
func (s *MapPointsStore) PointsForEffect(target string) []Vec2 {
	var out []Vec2
	for _, g := range s.GroupsForEffect(target) {
		if g.Type == GroupTypePoint {
			out = append(out, g.Points...)
		}
	}
	return out
}

// LinesForEffect returns consecutive segment pairs of line and rope
// source groups bound to the target.
func (s *MapPointsStore) LinesForEffect(target string) [][2]Vec2 {
	var out [][2]Vec2
	for _, g := range s.GroupsForEffect(target) {
		if g.Type != GroupTypeLine && g.Type != GroupTypeRope {
			continue
		}
		for i := 0; i+1 < len(g.Points); i++ {
			out = append(out, [2]Vec2{g.Points[i], g.Points[i+1]})
		}
	}
	return out
}

// AreasForEffect returns area-type source groups bound to the target.
func (s *MapPointsStore) AreasForEffect(target string) []MapPointGroup {
	var out []MapPointGroup
	for _, g := range s.GroupsForEffect(target) {
		if g.Type == GroupTypeArea {
			out = append(out, g)
		}
	}
	return out
}

// GroupBounds returns the axis-aligned bounds of the group's points.
func GroupBounds(g MapPointGroup) Rect {
	return polygonBounds(g.Points)
}

// PointInPolygon reports whether p lies inside poly by even-odd ray
// casting. Points on an edge may land on either side.
func PointInPolygon(poly []Vec2, p Vec2) bool {
	return pointInPolygon(p, poly)
}

// RandomPointInArea samples a uniform point inside an area group by
// rejection over its bounds. Returns false for non-areas and degenerate
// polygons.
func (s *MapPointsStore) RandomPointInArea(id string) (Vec2, bool) {
	g, ok := s.groups[id]
	if !ok || g.Type != GroupTypeArea {
		return Vec2{}, false
	}
	return randomPointInPolygon(g.Points)
}
