package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
)

const pointKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Placemark>
    <name>Test Point</name>
    <Point><coordinates>-122.0,37.0,0</coordinates></Point>
  </Placemark>
</kml>`

func TestConvertKMLPoint(t *testing.T) {
	fc, err := ConvertKML([]byte(pointKML))
	require.NoError(t, err)

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)

	feature := fc.Features[0]
	assert.Equal(t, "Feature", feature.Type)
	assert.Equal(t, "Test Point", feature.Properties["name"])

	require.NotNil(t, feature.Geometry)
	assert.Equal(t, "Point", feature.Geometry.Type)
	assert.Equal(t, []float64{-122.0, 37.0, 0}, feature.Geometry.Coordinates)
}

func TestConvertKMLNestedContainers(t *testing.T) {
	kml := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Folder>
      <Placemark>
        <name>One</name>
        <Point><coordinates>1.0,2.0</coordinates></Point>
      </Placemark>
    </Folder>
    <Placemark>
      <name>Two</name>
      <Point><coordinates>3.0,4.0</coordinates></Point>
    </Placemark>
  </Document>
</kml>`

	fc, err := ConvertKML([]byte(kml))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	names := []string{}
	for _, f := range fc.Features {
		names = append(names, f.Properties["name"].(string))
	}
	assert.ElementsMatch(t, []string{"One", "Two"}, names)
}

func TestConvertKMLLineAndPolygon(t *testing.T) {
	kml := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <Placemark>
      <name>Route</name>
      <LineString><coordinates>0,0 1,1 2,2</coordinates></LineString>
    </Placemark>
    <Placemark>
      <name>Area</name>
      <Polygon>
        <outerBoundaryIs>
          <LinearRing><coordinates>0,0 4,0 4,4 0,4 0,0</coordinates></LinearRing>
        </outerBoundaryIs>
      </Polygon>
    </Placemark>
  </Document>
</kml>`

	fc, err := ConvertKML([]byte(kml))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	line := fc.Features[0].Geometry
	assert.Equal(t, "LineString", line.Type)
	assert.Equal(t, [][]float64{{0, 0}, {1, 1}, {2, 2}}, line.Coordinates)

	polygon := fc.Features[1].Geometry
	assert.Equal(t, "Polygon", polygon.Type)
	assert.Equal(t, [][][]float64{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}}, polygon.Coordinates)
}

func TestConvertKMLExtendedData(t *testing.T) {
	kml := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Placemark>
    <name>Annotated</name>
    <description>a place</description>
    <ExtendedData>
      <Data name="category"><value>school</value></Data>
    </ExtendedData>
    <Point><coordinates>10.5,20.5</coordinates></Point>
  </Placemark>
</kml>`

	fc, err := ConvertKML([]byte(kml))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	props := fc.Features[0].Properties
	assert.Equal(t, "Annotated", props["name"])
	assert.Equal(t, "a place", props["description"])
	assert.Equal(t, "school", props["category"])
}

func TestConvertKMLMultiGeometry(t *testing.T) {
	kml := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Placemark>
    <name>Multi</name>
    <MultiGeometry>
      <Point><coordinates>1,1</coordinates></Point>
      <LineString><coordinates>0,0 1,1</coordinates></LineString>
    </MultiGeometry>
  </Placemark>
</kml>`

	fc, err := ConvertKML([]byte(kml))
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	geometry := fc.Features[0].Geometry
	assert.Equal(t, "GeometryCollection", geometry.Type)
	require.Len(t, geometry.Geometries, 2)
	assert.Equal(t, "Point", geometry.Geometries[0].Type)
	assert.Equal(t, "LineString", geometry.Geometries[1].Type)
}

func TestConvertKMLFailures(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"malformed XML", []byte("<kml><invalid structure</kml>")},
		{"non-UTF8 bytes", []byte{0xff, 0xfe, '<', 'k', 'm', 'l', '>'}},
		{"empty input", []byte{}},
		{"no placemarks", []byte(`<kml><Document></Document></kml>`)},
		{"placemarks without geometry", []byte(`<kml><Placemark><name>x</name></Placemark></kml>`)},
		{"bad coordinates", []byte(`<kml><Placemark><Point><coordinates>not,numbers</coordinates></Point></Placemark></kml>`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := ConvertKML(tt.input)
			require.Error(t, err)
			assert.Nil(t, fc)
			assert.Equal(t, apperr.KindConversion, apperr.KindOf(err))
		})
	}
}
