package storage

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
)

// GeoJSON output model. Coordinates keep the KML altitude component when
// present, so positions are [lon, lat] or [lon, lat, alt].
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type Geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates,omitempty"`
	Geometries  []*Geometry `json:"geometries,omitempty"`
}

// KML document shape, as much of it as the conversion needs.
type kmlRoot struct {
	XMLName xml.Name `xml:"kml"`
	kmlContainer
}

type kmlContainer struct {
	Folders    []kmlContainer `xml:"Folder"`
	Documents  []kmlContainer `xml:"Document"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name          string           `xml:"name"`
	Description   string           `xml:"description"`
	ExtendedData  *kmlExtendedData `xml:"ExtendedData"`
	Point         *kmlGeometry     `xml:"Point"`
	LineString    *kmlGeometry     `xml:"LineString"`
	Polygon       *kmlPolygon      `xml:"Polygon"`
	MultiGeometry *kmlMulti        `xml:"MultiGeometry"`
}

type kmlGeometry struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlBoundary   `xml:"outerBoundaryIs"`
	Inner []kmlBoundary `xml:"innerBoundaryIs"`
}

type kmlBoundary struct {
	Ring kmlGeometry `xml:"LinearRing"`
}

type kmlMulti struct {
	Points   []kmlGeometry `xml:"Point"`
	Lines    []kmlGeometry `xml:"LineString"`
	Polygons []kmlPolygon  `xml:"Polygon"`
	Multis   []kmlMulti    `xml:"MultiGeometry"`
}

type kmlExtendedData struct {
	Data       []kmlData       `xml:"Data"`
	SchemaData []kmlSchemaData `xml:"SchemaData"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlSchemaData struct {
	SimpleData []kmlSimpleData `xml:"SimpleData"`
}

type kmlSimpleData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// ConvertKML converts KML bytes into a GeoJSON FeatureCollection, one
// feature per placemark with a geometry. Conversion is all-or-nothing: on
// any error nothing is returned.
func ConvertKML(kml []byte) (*FeatureCollection, error) {
	var root kmlRoot
	if err := xml.Unmarshal(kml, &root); err != nil {
		return nil, apperr.Conversion("invalid KML structure or encoding", err)
	}

	var features []*Feature
	if err := collectFeatures(&root.kmlContainer, &features); err != nil {
		return nil, err
	}

	if len(features) == 0 {
		return nil, apperr.Conversion("invalid KML structure or encoding", nil)
	}

	return &FeatureCollection{Type: "FeatureCollection", Features: features}, nil
}

func collectFeatures(c *kmlContainer, features *[]*Feature) error {
	for i := range c.Placemarks {
		feature, err := placemarkFeature(&c.Placemarks[i])
		if err != nil {
			return err
		}
		if feature != nil {
			*features = append(*features, feature)
		}
	}
	for i := range c.Documents {
		if err := collectFeatures(&c.Documents[i], features); err != nil {
			return err
		}
	}
	for i := range c.Folders {
		if err := collectFeatures(&c.Folders[i], features); err != nil {
			return err
		}
	}
	return nil
}

func placemarkFeature(p *kmlPlacemark) (*Feature, error) {
	geometry, err := placemarkGeometry(p)
	if err != nil {
		return nil, apperr.Conversion("KML to GeoJSON conversion failed", err)
	}
	if geometry == nil {
		// Placemark without a geometry, nothing to map.
		return nil, nil
	}

	properties := map[string]interface{}{}
	if p.Name != "" {
		properties["name"] = p.Name
	}
	if p.Description != "" {
		properties["description"] = p.Description
	}
	if p.ExtendedData != nil {
		for _, d := range p.ExtendedData.Data {
			properties[d.Name] = d.Value
		}
		for _, sd := range p.ExtendedData.SchemaData {
			for _, d := range sd.SimpleData {
				properties[d.Name] = strings.TrimSpace(d.Value)
			}
		}
	}

	return &Feature{Type: "Feature", Geometry: geometry, Properties: properties}, nil
}

func placemarkGeometry(p *kmlPlacemark) (*Geometry, error) {
	switch {
	case p.Point != nil:
		return pointGeometry(p.Point)
	case p.LineString != nil:
		return lineGeometry(p.LineString)
	case p.Polygon != nil:
		return polygonGeometry(p.Polygon)
	case p.MultiGeometry != nil:
		return multiGeometry(p.MultiGeometry)
	default:
		return nil, nil
	}
}

func pointGeometry(g *kmlGeometry) (*Geometry, error) {
	positions, err := parseCoordinates(g.Coordinates)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("point has no coordinates")
	}
	return &Geometry{Type: "Point", Coordinates: positions[0]}, nil
}

func lineGeometry(g *kmlGeometry) (*Geometry, error) {
	positions, err := parseCoordinates(g.Coordinates)
	if err != nil {
		return nil, err
	}
	return &Geometry{Type: "LineString", Coordinates: positions}, nil
}

func polygonGeometry(p *kmlPolygon) (*Geometry, error) {
	outer, err := parseCoordinates(p.Outer.Ring.Coordinates)
	if err != nil {
		return nil, err
	}
	rings := [][][]float64{outer}
	for _, inner := range p.Inner {
		ring, err := parseCoordinates(inner.Ring.Coordinates)
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
	}
	return &Geometry{Type: "Polygon", Coordinates: rings}, nil
}

func multiGeometry(m *kmlMulti) (*Geometry, error) {
	var members []*Geometry
	for i := range m.Points {
		g, err := pointGeometry(&m.Points[i])
		if err != nil {
			return nil, err
		}
		members = append(members, g)
	}
	for i := range m.Lines {
		g, err := lineGeometry(&m.Lines[i])
		if err != nil {
			return nil, err
		}
		members = append(members, g)
	}
	for i := range m.Polygons {
		g, err := polygonGeometry(&m.Polygons[i])
		if err != nil {
			return nil, err
		}
		members = append(members, g)
	}
	for i := range m.Multis {
		g, err := multiGeometry(&m.Multis[i])
		if err != nil {
			return nil, err
		}
		members = append(members, g)
	}
	return &Geometry{Type: "GeometryCollection", Geometries: members}, nil
}

// parseCoordinates parses a KML coordinates block: whitespace-separated
// tuples of "lon,lat[,alt]".
func parseCoordinates(raw string) ([][]float64, error) {
	var positions [][]float64
	for _, tuple := range strings.Fields(raw) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("malformed coordinate tuple %q", tuple)
		}
		position := make([]float64, 0, len(parts))
		for _, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, fmt.Errorf("malformed coordinate tuple %q: %w", tuple, err)
			}
			position = append(position, v)
		}
		positions = append(positions, position)
	}
	return positions, nil
}
