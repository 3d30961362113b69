package pm25

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
)

// kelurahanNameFields is the priority list of shapefile attribute names
// used to identify a kelurahan polygon's name.
var kelurahanNameFields = []string{
	"KELURAHAN_NAME", "NAMOBJ", "NAMA", "DESA", "NAME", "KELURAHAN",
}

// Kelurahan is one administrative sub-district polygon.
type Kelurahan struct {
	Name    string
	Polygon geom.Polygonal
}

// GridPoint is one point of the fixed interpolation lattice.
// ID is its row-order position in the lattice.
type GridPoint struct {
	ID        int
	Lon, Lat  float64
	Kelurahan int // index into Grid.Kelurahans
}

// Grid holds the fixed spatial lattice and its precomputed polygon
// assignment, computed once per run.
type Grid struct {
	Points      []GridPoint
	Kelurahans  []Kelurahan
	ByKelurahan map[int][]int // kelurahan index -> grid point indices
}

// kelurahanIndexItem adapts a Kelurahan for insertion into an rtree.Rtree,
// which requires only a Bounds() method.
type kelurahanIndexItem struct {
	index int
	poly  geom.Polygonal
}

func (k *kelurahanIndexItem) Bounds() *geom.Bounds { return k.poly.Bounds() }

// resolveNameField opens shp once per candidate in priority order and
// probes whether decoding the first feature with that field succeeds. This
// avoids depending on any field-enumeration API beyond what DecodeRowFields
// already exposes. Returns "" if no candidate field is present, in which
// case callers synthesize sequential names and log a warning.
func resolveNameField(shapefileBase string) (string, error) {
	for _, candidate := range kelurahanNameFields {
		dec, err := shp.NewDecoder(shapefileBase)
		if err != nil {
			return "", GeometryError{Msg: fmt.Sprintf("opening shapefile: %v", err)}
		}
		_, _, more := dec.DecodeRowFields(candidate)
		ok := more && dec.Error() == nil
		dec.Close()
		if ok {
			return candidate, nil
		}
	}
	return "", nil
}

// loadKelurahans reads every polygon feature from the shapefile, resolving
// its name via the priority-list strategy in resolveNameField.
func loadKelurahans(shapefileBase string, log Logger) ([]Kelurahan, error) {
	nameField, err := resolveNameField(shapefileBase)
	if err != nil {
		return nil, err
	}
	if nameField == "" {
		log.Warnf("grid: shapefile has none of the priority name fields %v; synthesizing sequential names", kelurahanNameFields)
	}

	dec, err := shp.NewDecoder(shapefileBase)
	if err != nil {
		return nil, GeometryError{Msg: fmt.Sprintf("opening shapefile: %v", err)}
	}
	defer dec.Close()

	var kelurahans []Kelurahan
	n := 0
	for {
		var g geom.Geom
		var fields map[string]string
		var more bool
		if nameField != "" {
			g, fields, more = dec.DecodeRowFields(nameField)
		} else {
			g, fields, more = dec.DecodeRowFields()
		}
		if !more {
			break
		}
		if dec.Error() != nil {
			return nil, GeometryError{Msg: fmt.Sprintf("decoding feature %d: %v", n, dec.Error())}
		}
		n++

		poly, ok := g.(geom.Polygonal)
		if !ok {
			log.Warnf("grid: feature %d is not polygonal; skipping", n)
			continue
		}

		name := fields[nameField]
		if name == "" {
			name = fmt.Sprintf("Kelurahan %d", n)
		}
		kelurahans = append(kelurahans, Kelurahan{Name: name, Polygon: poly})
	}

	if len(kelurahans) == 0 {
		return nil, GeometryError{Msg: "shapefile contains no polygon features"}
	}
	return kelurahans, nil
}

// BuildGrid implements the Grid Builder: a lon/lat lattice at
// cellSizeDeg spacing over the bounding rectangle of the kelurahan polygon
// union, retaining only points contained in some polygon and precomputing
// the grid-point -> polygon assignment via a spatial index.
func BuildGrid(shapefileBase string, cellSizeDeg float64, log Logger) (*Grid, error) {
	kelurahans, err := loadKelurahans(shapefileBase, log)
	if err != nil {
		return nil, err
	}

	bounds := geom.NewBounds()
	index := rtree.NewTree(25, 50)
	for i := range kelurahans {
		item := &kelurahanIndexItem{index: i, poly: kelurahans[i].Polygon}
		index.Insert(item)
		bounds.Extend(kelurahans[i].Polygon.Bounds())
	}

	g := &Grid{
		Kelurahans:  kelurahans,
		ByKelurahan: make(map[int][]int),
	}

	var tieLogged bool
	pointsPerKelurahan := make([]int, len(kelurahans))

	id := 0
	for lat := bounds.Min.Y; lat <= bounds.Max.Y; lat += cellSizeDeg {
		for lon := bounds.Min.X; lon <= bounds.Max.X; lon += cellSizeDeg {
			pt := geom.Point{X: lon, Y: lat}
			candidates := index.SearchIntersect(geom.NewBoundsPoint(pt))
			if len(candidates) == 0 {
				continue
			}

			best := -1
			matches := 0
			for _, cI := range candidates {
				item := cI.(*kelurahanIndexItem)
				status := pt.Within(item.poly)
				if status == geom.Outside {
					continue
				}
				matches++
				if best == -1 || item.index < best {
					best = item.index
				}
			}
			if best == -1 {
				continue
			}
			if matches > 1 && !tieLogged {
				log.Warnf("grid: a grid point lies in more than one kelurahan polygon; resolving by shapefile order")
				tieLogged = true
			}

			gp := GridPoint{ID: id, Lon: lon, Lat: lat, Kelurahan: best}
			g.Points = append(g.Points, gp)
			g.ByKelurahan[best] = append(g.ByKelurahan[best], len(g.Points)-1)
			pointsPerKelurahan[best]++
			id++
		}
	}

	for i, k := range kelurahans {
		if pointsPerKelurahan[i] == 0 {
			log.Warnf("grid: kelurahan %q has no grid points at cell size %g deg and is omitted from output", k.Name, cellSizeDeg)
		}
	}

	return g, nil
}
