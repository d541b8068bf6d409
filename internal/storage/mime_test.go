package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		mimeType string
		want     Class
	}{
		{"image/png", ClassImage},
		{"image/jpeg", ClassImage},
		{"image/jpg", ClassImage},
		{"image/gif", ClassImage},
		{"image/webp", ClassImage},
		{"application/geo+json", ClassGeo},
		{"application/vnd.google-earth.kml+xml", ClassGeo},
		{"application/json", ClassGeo},
		{"application/octet-stream", ClassGeo},
		{"text/plain", ClassRejected},
		{"application/pdf", ClassRejected},
		{"image/svg+xml", ClassRejected},
		{"IMAGE/PNG", ClassRejected},
		{"", ClassRejected},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.mimeType))
		})
	}
}
