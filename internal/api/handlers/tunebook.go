package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Conceptual-Machines/abc-api/internal/abc"
	"github.com/Conceptual-Machines/abc-api/internal/abc/structure"
	"github.com/Conceptual-Machines/abc-api/internal/config"
	"github.com/Conceptual-Machines/abc-api/internal/logger"
	"github.com/Conceptual-Machines/abc-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TuneBookHandler stores raw ABC sources and serves individual tunes out of
// them lazily: a stored book is validated once at upload time, but a tune is
// only fully resolved when a client asks for it by reference number.
type TuneBookHandler struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewTuneBookHandler(cfg *config.Config, db *gorm.DB) *TuneBookHandler {
	return &TuneBookHandler{cfg: cfg, db: db}
}

type CreateTuneBookRequest struct {
	Title  string `json:"title"`
	Source string `json:"source" binding:"required"`
}

// requireDB rejects the request when the service runs without storage.
func (h *TuneBookHandler) requireDB(c *gin.Context) bool {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tune book storage not configured"})
		return false
	}
	return true
}

// Create validates and stores a tune book source.
func (h *TuneBookHandler) Create(c *gin.Context) {
	if !h.requireDB(c) {
		return
	}

	var req CreateTuneBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refs := structure.ListReferenceNumbers(req.Source)
	if len(refs) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "source contains no tunes",
			"request_id": c.GetString("request_id"),
		})
		return
	}

	title := req.Title
	if title == "" {
		// Fall back to the first tune's title
		opts, _ := parseOptions(h.cfg, "", false, "")
		if book, _, err := abc.Parse(req.Source, opts...); err == nil && len(book.Order) > 0 {
			title = book.Tunes[book.Order[0]].Title()
		}
	}

	entry := models.TuneBook{
		PublicID:  uuid.New().String(),
		Title:     title,
		Source:    req.Source,
		TuneCount: len(refs),
		RequestID: c.GetString("request_id"),
	}
	if err := h.db.Create(&entry).Error; err != nil {
		logger.Error("Failed to store tune book", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store tune book"})
		return
	}

	logger.Info("Tune book stored", logger.Fields{
		"request_id": entry.RequestID,
		"public_id":  entry.PublicID,
		"tune_count": entry.TuneCount,
	})

	c.JSON(http.StatusCreated, gin.H{
		"public_id":  entry.PublicID,
		"title":      entry.Title,
		"tune_count": entry.TuneCount,
		"references": refs,
	})
}

// List returns the stored tune books, newest first.
func (h *TuneBookHandler) List(c *gin.Context) {
	if !h.requireDB(c) {
		return
	}

	var books []models.TuneBook
	if err := h.db.Order("created_at DESC").Find(&books).Error; err != nil {
		logger.Error("Failed to list tune books", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tune books"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tunebooks": books})
}

// Get returns one stored book's metadata. The raw source never leaves the
// store through this endpoint.
func (h *TuneBookHandler) Get(c *gin.Context) {
	book, ok := h.loadBook(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"public_id":  book.PublicID,
		"title":      book.Title,
		"tune_count": book.TuneCount,
		"created_at": book.CreatedAt,
	})
}

// ListTunes returns the reference numbers and titles of one stored book
// without resolving any tune.
func (h *TuneBookHandler) ListTunes(c *gin.Context) {
	book, ok := h.loadBook(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"public_id":  book.PublicID,
		"title":      book.Title,
		"references": structure.ListReferenceNumbers(book.Source),
	})
}

// GetTune extracts and resolves a single tune from a stored book.
func (h *TuneBookHandler) GetTune(c *gin.Context) {
	book, ok := h.loadBook(c)
	if !ok {
		return
	}

	ref, err := strconv.Atoi(c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reference number"})
		return
	}

	opts, err := parseOptions(h.cfg, c.Query("format_version"), false, c.Query("propagate_accidentals"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tune, diags, err := abc.ParseTune(book.Source, ref, opts...)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      err.Error(),
			"request_id": c.GetString("request_id"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tune":        tuneView(tune),
		"diagnostics": diags,
		"request_id":  c.GetString("request_id"),
	})
}

// loadBook fetches the book addressed by the :id path param, writing the
// error response itself when the lookup fails.
func (h *TuneBookHandler) loadBook(c *gin.Context) (*models.TuneBook, bool) {
	if !h.requireDB(c) {
		return nil, false
	}

	var book models.TuneBook
	err := h.db.Where("public_id = ?", c.Param("id")).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "tune book not found"})
		return nil, false
	}
	if err != nil {
		logger.Error("Failed to load tune book", err, logger.WithContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tune book"})
		return nil, false
	}
	return &book, true
}
