package storage

// Class is the result of classifying a declared content type.
type Class int

const (
	ClassRejected Class = iota
	ClassGeo
	ClassImage
)

// allowedMimeTypes is the fixed allowed set. Geo types cover GeoJSON and KML
// uploads; everything else allowed is an image.
var allowedMimeTypes = map[string]Class{
	"image/png":  ClassImage,
	"image/jpeg": ClassImage,
	"image/jpg":  ClassImage,
	"image/gif":  ClassImage,
	"image/webp": ClassImage,

	"application/geo+json":                 ClassGeo,
	"application/vnd.google-earth.kml+xml": ClassGeo,
	"application/json":                     ClassGeo,
	"application/octet-stream":             ClassGeo,
}

// Classify maps a declared MIME type to its class. The content itself is
// not sniffed; the client-declared type is trusted.
func Classify(mimeType string) Class {
	class, ok := allowedMimeTypes[mimeType]
	if !ok {
		return ClassRejected
	}
	return class
}
