package features

import (
	"encoding/json"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/region-atlas/internal/normalize"
)

type topology struct {
	Type      string                  `json:"type"`
	Transform *topoTransform          `json:"transform"`
	Arcs      [][][]float64           `json:"arcs"`
	Objects   map[string]topoGeometry `json:"objects"`
}

type topoTransform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type topoGeometry struct {
	Type        string          `json:"type"`
	ID          any             `json:"id"`
	Properties  map[string]any  `json:"properties"`
	Arcs        json.RawMessage `json:"arcs"`
	Coordinates json.RawMessage `json:"coordinates"`
	Geometries  []topoGeometry  `json:"geometries"`
}

// DecodeTopoJSON converts one object of a TopoJSON topology into features.
// Quantized arcs are delta-decoded through the topology transform; a negative
// arc index ~i refers to arc i reversed. An empty object name selects the
// first object in name order. Members whose geometry cannot be built keep
// their properties with a nil Geometry.
func DecodeTopoJSON(data []byte, object string) ([]Feature, error) {
	var topo topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, eris.Wrap(err, "features: decode topojson")
	}
	if topo.Type != "Topology" {
		return nil, eris.Errorf("features: expected Topology, got %q", topo.Type)
	}
	if len(topo.Objects) == 0 {
		return nil, eris.New("features: topology has no objects")
	}

	if object == "" {
		names := make([]string, 0, len(topo.Objects))
		for name := range topo.Objects {
			names = append(names, name)
		}
		slices.Sort(names)
		object = names[0]
	}
	obj, ok := topo.Objects[object]
	if !ok {
		return nil, eris.Errorf("features: topology object %q not found", object)
	}

	d := &topoDecoder{topo: &topo, arcs: decodeArcs(&topo)}

	var members []topoGeometry
	flattenGeometries(obj, &members)

	out := make([]Feature, 0, len(members))
	for i, m := range members {
		f := Feature{ID: normalize.String(m.ID), Properties: m.Properties}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		g, err := d.geometry(m)
		if err != nil {
			zap.L().Warn("features: dropping malformed topology geometry",
				zap.Int("index", i), zap.String("id", f.ID), zap.Error(err))
		} else {
			f.Geometry = g
		}
		out = append(out, f)
	}
	return out, nil
}

func flattenGeometries(g topoGeometry, out *[]topoGeometry) {
	if g.Type == "GeometryCollection" {
		for _, child := range g.Geometries {
			flattenGeometries(child, out)
		}
		return
	}
	*out = append(*out, g)
}

// decodeArcs resolves every arc to absolute coordinates.
func decodeArcs(topo *topology) [][]geom.Coord {
	arcs := make([][]geom.Coord, len(topo.Arcs))
	for i, arc := range topo.Arcs {
		coords := make([]geom.Coord, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if topo.Transform == nil {
				coords = append(coords, geom.Coord{p[0], p[1]})
				continue
			}
			x += p[0]
			y += p[1]
			coords = append(coords, topo.Transform.apply(x, y))
		}
		arcs[i] = coords
	}
	return arcs
}

func (t *topoTransform) apply(x, y float64) geom.Coord {
	return geom.Coord{x*t.Scale[0] + t.Translate[0], y*t.Scale[1] + t.Translate[1]}
}

type topoDecoder struct {
	topo *topology
	arcs [][]geom.Coord
}

func (d *topoDecoder) point(p []float64) (geom.Coord, error) {
	if len(p) < 2 {
		return nil, eris.New("features: point needs two coordinates")
	}
	if d.topo.Transform != nil {
		return d.topo.Transform.apply(p[0], p[1]), nil
	}
	return geom.Coord{p[0], p[1]}, nil
}

// line stitches arcs together, dropping the shared point between neighbours.
func (d *topoDecoder) line(indexes []int) ([]float64, error) {
	var flat []float64
	for k, idx := range indexes {
		arc, err := d.arc(idx)
		if err != nil {
			return nil, err
		}
		for j, c := range arc {
			if k > 0 && j == 0 {
				continue
			}
			flat = append(flat, c[0], c[1])
		}
	}
	return flat, nil
}

func (d *topoDecoder) arc(idx int) ([]geom.Coord, error) {
	reversed := idx < 0
	if reversed {
		idx = ^idx
	}
	if idx >= len(d.arcs) {
		return nil, eris.Errorf("features: arc index %d out of range", idx)
	}
	arc := d.arcs[idx]
	if reversed {
		arc = slices.Clone(arc)
		slices.Reverse(arc)
	}
	return arc, nil
}

func (d *topoDecoder) polygon(rings [][]int) (*geom.Polygon, error) {
	poly := geom.NewPolygon(geom.XY)
	for _, ring := range rings {
		flat, err := d.line(ring)
		if err != nil {
			return nil, err
		}
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrap(err, "features: push ring")
		}
	}
	return poly, nil
}

func (d *topoDecoder) geometry(g topoGeometry) (geom.T, error) {
	switch g.Type {
	case "", "null":
		return nil, nil

	case "Point":
		var p []float64
		if err := json.Unmarshal(g.Coordinates, &p); err != nil {
			return nil, eris.Wrap(err, "features: decode point")
		}
		c, err := d.point(p)
		if err != nil {
			return nil, err
		}
		return geom.NewPointFlat(geom.XY, c), nil

	case "MultiPoint":
		var ps [][]float64
		if err := json.Unmarshal(g.Coordinates, &ps); err != nil {
			return nil, eris.Wrap(err, "features: decode multipoint")
		}
		flat := make([]float64, 0, len(ps)*2)
		for _, p := range ps {
			c, err := d.point(p)
			if err != nil {
				return nil, err
			}
			flat = append(flat, c...)
		}
		return geom.NewMultiPointFlat(geom.XY, flat), nil

	case "LineString":
		var idx []int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, eris.Wrap(err, "features: decode linestring arcs")
		}
		flat, err := d.line(idx)
		if err != nil {
			return nil, err
		}
		return geom.NewLineStringFlat(geom.XY, flat), nil

	case "MultiLineString":
		var lines [][]int
		if err := json.Unmarshal(g.Arcs, &lines); err != nil {
			return nil, eris.Wrap(err, "features: decode multilinestring arcs")
		}
		mls := geom.NewMultiLineString(geom.XY)
		for _, idx := range lines {
			flat, err := d.line(idx)
			if err != nil {
				return nil, err
			}
			if err := mls.Push(geom.NewLineStringFlat(geom.XY, flat)); err != nil {
				return nil, eris.Wrap(err, "features: push linestring")
			}
		}
		return mls, nil

	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, eris.Wrap(err, "features: decode polygon arcs")
		}
		return d.polygon(rings)

	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, eris.Wrap(err, "features: decode multipolygon arcs")
		}
		mp := geom.NewMultiPolygon(geom.XY)
		for _, rings := range polys {
			poly, err := d.polygon(rings)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(poly); err != nil {
				return nil, eris.Wrap(err, "features: push polygon")
			}
		}
		return mp, nil

	default:
		return nil, eris.Errorf("features: unsupported topology geometry %q", g.Type)
	}
}
