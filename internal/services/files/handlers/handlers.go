package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chaptermaps/institution-service/internal/domain/apperr"
	"github.com/chaptermaps/institution-service/internal/domain/file"
	"github.com/chaptermaps/institution-service/internal/services/files/service"
	"github.com/chaptermaps/institution-service/internal/storage"
	"github.com/chaptermaps/institution-service/pkg/logger"
)

type FileHandlers struct {
	service *service.FileService
	logger  logger.Logger
}

func NewFileHandlers(service *service.FileService, log logger.Logger) *FileHandlers {
	return &FileHandlers{service: service, logger: log}
}

// UploadResponse is the body returned by a successful upload batch.
type UploadResponse struct {
	Msg        string      `json:"msg"`
	GeoFiles   []file.Info `json:"geo_files"`
	ImageFiles []file.Info `json:"image_files"`
}

// Upload handles POST /files: multipart form with a "files" part list and an
// "institution_id" field.
func (h *FileHandlers) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	institutionID := c.PostForm("institution_id")
	if institutionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "institution_id is required"})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	uploads := make([]*storage.Upload, 0, len(headers))
	for _, fh := range headers {
		content, err := fh.Open()
		if err != nil {
			for _, up := range uploads {
				up.Content.Close()
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
			return
		}
		uploads = append(uploads, &storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}

	result, err := h.service.Upload(c.Request.Context(), uploads, institutionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := UploadResponse{
		Msg:        "files uploaded successfully",
		GeoFiles:   []file.Info{},
		ImageFiles: []file.Info{},
	}
	for _, f := range result.GeoFiles {
		resp.GeoFiles = append(resp.GeoFiles, file.InfoOf(f))
	}
	for _, f := range result.ImageFiles {
		resp.ImageFiles = append(resp.ImageFiles, file.InfoOf(f))
	}

	c.JSON(http.StatusCreated, resp)
}

// Get handles GET /files/:kind/:name. Geo files are served as their parsed
// JSON body; image files as raw bytes with the stored content type.
func (h *FileHandlers) Get(c *gin.Context) {
	kind, name, ok := h.kindAndName(c)
	if !ok {
		return
	}

	if kind == file.KindGeo {
		content, err := h.service.GeoContent(c.Request.Context(), name)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, content)
		return
	}

	rec, err := h.service.Get(c.Request.Context(), kind, name)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Type", rec.Meta().ContentType)
	c.File(rec.Meta().Path)
}

// Update handles PUT /files/:kind/:name with a single multipart "file" part.
func (h *FileHandlers) Update(c *gin.Context) {
	kind, name, ok := h.kindAndName(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	content, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}

	up := &storage.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}

	rec, err := h.service.Update(c.Request.Context(), kind, name, up)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, file.InfoOf(rec))
}

// Delete handles DELETE /files/:kind/:name.
func (h *FileHandlers) Delete(c *gin.Context) {
	kind, name, ok := h.kindAndName(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), kind, name); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": name + " deleted successfully"})
}

func (h *FileHandlers) kindAndName(c *gin.Context) (file.Kind, string, bool) {
	kind, ok := file.KindFromString(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type, must be 'geo' or 'image'"})
		return "", "", false
	}
	return kind, c.Param("name"), true
}

// respondError maps the error taxonomy to status codes. Raw causes are
// logged, never returned to the caller.
func (h *FileHandlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindConversion:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("file request failed", "path", c.FullPath(), "error", err)
	}

	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
