package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaptermaps/institution-service/internal/domain/file"
	"github.com/chaptermaps/institution-service/internal/domain/institution"
	filerepo "github.com/chaptermaps/institution-service/internal/services/files/repository"
	filesvc "github.com/chaptermaps/institution-service/internal/services/files/service"
	"github.com/chaptermaps/institution-service/internal/services/institution/repository"
	"github.com/chaptermaps/institution-service/internal/services/institution/service"
	"github.com/chaptermaps/institution-service/internal/storage"
	"github.com/chaptermaps/institution-service/pkg/cache"
	"github.com/chaptermaps/institution-service/pkg/database"
	"github.com/chaptermaps/institution-service/pkg/events"
	"github.com/chaptermaps/institution-service/pkg/logger"
)

type fixture struct {
	router *gin.Engine
	files  *filesvc.FileService
	store  *storage.FileStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(&institution.Institution{}, &file.GeoFile{}, &file.ImageFile{}))

	store := storage.NewFileStore(storage.Config{GeoDir: t.TempDir(), ImageDir: t.TempDir()}, logger.NewNop())
	bus := events.NewMemoryEventBus()
	files := filesvc.NewFileService(
		filerepo.NewFileRepository(db), store, cache.NewNop(), bus, logger.NewNop(),
		"http://localhost:8080")
	svc := service.NewInstitutionService(
		repository.NewInstitutionRepository(db), files, bus, logger.NewNop())
	h := NewInstitutionHandlers(svc, logger.NewNop())

	router := gin.New()
	v1 := router.Group("/api/v1")
	{
		v1.GET("/institutions", h.List)
		v1.POST("/institutions", h.Create)
		v1.GET("/institutions/:id", h.Get)
		v1.PUT("/institutions/:id", h.Update)
		v1.DELETE("/institutions/:id", h.Delete)
	}

	return &fixture{router: router, files: files, store: store}
}

const createBody = `{
	"name": "Example School",
	"country": "Kenya",
	"address": "1 Example Road",
	"chapter_name": "Nairobi",
	"OSM_mapping": 1,
	"contributor_full_name": "Jane Doe",
	"contributor_email": "jane@example.org",
	"contributor_phone_number": "+254700000000",
	"role_in_chapter": "coordinator"
}`

func (fx *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func (fx *fixture) create(t *testing.T) institution.Institution {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/api/v1/institutions", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var inst institution.Institution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inst))
	require.NotEmpty(t, inst.ID)
	return inst
}

func TestCreateInstitution(t *testing.T) {
	fx := newFixture(t)

	inst := fx.create(t)
	assert.Equal(t, "Example School", inst.Name)
	assert.Equal(t, 1, inst.OSMMapping)
}

func TestCreateInstitutionValidation(t *testing.T) {
	fx := newFixture(t)

	t.Run("missing required fields", func(t *testing.T) {
		rec := fx.do(t, http.MethodPost, "/api/v1/institutions", `{"name": "Only Name"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad email", func(t *testing.T) {
		body := strings.Replace(createBody, "jane@example.org", "not-an-email", 1)
		rec := fx.do(t, http.MethodPost, "/api/v1/institutions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate name", func(t *testing.T) {
		fx.create(t)
		body := strings.Replace(createBody, "jane@example.org", "other@example.org", 1)
		rec := fx.do(t, http.MethodPost, "/api/v1/institutions", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "institution already exists")
	})
}

func TestGetAndListInstitutions(t *testing.T) {
	fx := newFixture(t)
	inst := fx.create(t)

	rec := fx.do(t, http.MethodGet, "/api/v1/institutions/"+inst.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got institution.Institution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, inst.Name, got.Name)

	rec = fx.do(t, http.MethodGet, "/api/v1/institutions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []institution.Institution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = fx.do(t, http.MethodGet, "/api/v1/institutions/no-such-id", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "institution not found")
}

func TestUpdateInstitution(t *testing.T) {
	fx := newFixture(t)
	inst := fx.create(t)

	rec := fx.do(t, http.MethodPut, "/api/v1/institutions/"+inst.ID, `{"country": "Uganda"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated institution.Institution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Uganda", updated.Country)
	assert.Equal(t, inst.Name, updated.Name)

	rec = fx.do(t, http.MethodPut, "/api/v1/institutions/no-such-id", `{"country": "Uganda"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteInstitutionCascadesFiles(t *testing.T) {
	fx := newFixture(t)
	inst := fx.create(t)
	ctx := context.Background()

	up := &storage.Upload{
		Filename:    "map.geojson",
		ContentType: "application/geo+json",
		Content:     io.NopCloser(strings.NewReader(`{"type":"FeatureCollection","features":[]}`)),
	}
	result, err := fx.files.Upload(ctx, []*storage.Upload{up}, inst.ID)
	require.NoError(t, err)
	geo := result.GeoFiles[0]

	rec := fx.do(t, http.MethodDelete, "/api/v1/institutions/"+inst.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "institution deleted successfully")

	// Row, file record and artifact are all gone.
	rec = fx.do(t, http.MethodGet, "/api/v1/institutions/"+inst.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err = fx.files.Get(ctx, file.KindGeo, geo.Name)
	require.Error(t, err)
	assert.False(t, fx.store.Exists(geo.Path))
}
