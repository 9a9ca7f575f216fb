package memory

import (
	"math"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/vecinotech/vecinotech/pkg/geo"
)

// point is a request location on the unit sphere.
type point struct {
	v  [3]float64
	id string
}

var _ kdtree.Comparable = point{}

func newPoint(id string, c geo.Coordinate) point {
	return point{v: geo.UnitVector(c), id: id}
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	return p.v[d] - q.v[d]
}

func (p point) Dims() int { return 3 }

// Distance is the squared euclidean distance, as kdtree expects.
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	var sum float64
	for i := range p.v {
		d := p.v[i] - q.v[i]
		sum += d * d
	}
	return sum
}

// chordSlack absorbs rounding in the chord prefilter; the exact haversine
// check runs afterwards.
const chordSlack = 1e-9

// spatialIndex is a k-d tree of request locations. The tree cannot delete, so
// removed ids are remembered and the tree is rebuilt once they dominate.
type spatialIndex struct {
	tree    *kdtree.Tree
	points  map[string]point
	removed int
}

func newSpatialIndex() *spatialIndex {
	return &spatialIndex{
		tree:   &kdtree.Tree{},
		points: make(map[string]point),
	}
}

func (s *spatialIndex) insert(id string, c geo.Coordinate) {
	p := newPoint(id, c)
	s.points[id] = p
	s.tree.Insert(p, false)
}

func (s *spatialIndex) remove(id string) {
	if _, ok := s.points[id]; !ok {
		return
	}
	delete(s.points, id)
	s.removed++

	if s.removed > len(s.points) {
		s.rebuild()
	}
}

func (s *spatialIndex) rebuild() {
	tree := &kdtree.Tree{}
	for _, p := range s.points {
		tree.Insert(p, false)
	}
	s.tree = tree
	s.removed = 0
}

// within returns the ids of the indexed points whose chord distance to origin
// does not exceed the chord of radiusMeters. Removed ids may still be
// returned; callers filter on the live record.
func (s *spatialIndex) within(origin geo.Coordinate, radiusMeters float64) []string {
	chord := geo.ChordLength(radiusMeters) + chordSlack
	keeper := kdtree.NewDistKeeper(chord * chord)
	s.tree.NearestSet(keeper, newPoint("", origin))

	ids := make([]string, 0, keeper.Len())
	for _, c := range keeper.Heap {
		if c.Comparable == nil {
			continue
		}
		ids = append(ids, c.Comparable.(point).id)
	}
	return ids
}

// timeKey orders records by creation time, then id.
type timeKey struct {
	at time.Time
	id string
}

func compareTimeKeys(a, b interface{}) int {
	x, y := a.(timeKey), b.(timeKey)
	switch {
	case x.at.Before(y.at):
		return -1
	case x.at.After(y.at):
		return 1
	case x.id < y.id:
		return -1
	case x.id > y.id:
		return 1
	default:
		return 0
	}
}

// timeIndex keeps ids in creation order.
type timeIndex struct {
	tree *redblacktree.Tree
}

func newTimeIndex() *timeIndex {
	return &timeIndex{tree: redblacktree.NewWith(compareTimeKeys)}
}

func (t *timeIndex) put(at time.Time, id string) {
	t.tree.Put(timeKey{at: at, id: id}, id)
}

func (t *timeIndex) remove(at time.Time, id string) {
	t.tree.Remove(timeKey{at: at, id: id})
}

// newest returns up to limit ids, newest first. A non positive limit returns all.
func (t *timeIndex) newest(limit int) []string {
	if limit <= 0 {
		limit = math.MaxInt
	}

	var ids []string
	it := t.tree.Iterator()
	it.End()
	for it.Prev() && len(ids) < limit {
		ids = append(ids, it.Value().(string))
	}
	return ids
}
