package handlers

import (
	"net/http"
	"time"

	"github.com/Conceptual-Machines/abc-api/internal/abc"
	"github.com/Conceptual-Machines/abc-api/internal/abc/diag"
	"github.com/Conceptual-Machines/abc-api/internal/abc/field"
	"github.com/Conceptual-Machines/abc-api/internal/abc/structure"
	"github.com/Conceptual-Machines/abc-api/internal/abc/token"
	"github.com/Conceptual-Machines/abc-api/internal/config"
	"github.com/Conceptual-Machines/abc-api/internal/logger"
	"github.com/Conceptual-Machines/abc-api/internal/metrics"
	"github.com/Conceptual-Machines/abc-api/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ParseHandler struct {
	cfg       *config.Config
	db        *gorm.DB
	cwMetrics *metrics.Client
	smMetrics *metrics.SentryMetrics
}

func NewParseHandler(cfg *config.Config, db *gorm.DB, cwMetrics *metrics.Client) *ParseHandler {
	return &ParseHandler{
		cfg:       cfg,
		db:        db,
		cwMetrics: cwMetrics,
		smMetrics: metrics.NewSentryMetrics(),
	}
}

type ParseRequest struct {
	Source string `json:"source" binding:"required"`
	// Optional per-request overrides of the configured parser defaults
	FormatVersion        string `json:"format_version"`        // e.g. "2.1.0"
	Strict               bool   `json:"strict"`                // abort on unmatchable source
	PropagateAccidentals string `json:"propagate_accidentals"` // "not", "pitch" or "octave"
}

type ParseResponse struct {
	Tunes       []*TuneView       `json:"tunes"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	RequestID   string            `json:"request_id"`
}

// TuneView is the wire shape of one resolved tune.
type TuneView struct {
	Ref    int                   `json:"ref"`
	Title  string                `json:"title,omitempty"`
	Voices map[string]*VoiceView `json:"voices"`
}

type VoiceView struct {
	ID       string         `json:"id"`
	Measures []*MeasureView `json:"measures"`
}

type MeasureView struct {
	Left   string         `json:"left,omitempty"`
	Tokens []*token.Token `json:"tokens"`
	Right  string         `json:"right,omitempty"`
}

// Parse runs the full pipeline over the posted source and returns the
// resolved tunes plus every diagnostic collected along the way.
func (h *ParseHandler) Parse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts, err := parseOptions(h.cfg, req.FormatVersion, req.Strict, req.PropagateAccidentals)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	book, diags, err := abc.Parse(req.Source, opts...)
	duration := time.Since(start)

	if err != nil {
		logger.Error("Parse failed", err, logger.WithContext(c))
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       err.Error(),
			"diagnostics": diags,
			"request_id":  c.GetString("request_id"),
		})
		return
	}

	warnings, errors := countDiagnostics(diags)
	logger.LogParseRequest(c, duration, len(book.Order), warnings, errors)
	h.cwMetrics.RecordParse(len(book.Order), warnings, errors, duration)
	h.smMetrics.RecordParse(c.Request.Context(), len(book.Order), warnings, errors, duration)

	if h.db != nil {
		entry := models.ParseLog{
			RequestID:    c.GetString("request_id"),
			SourceBytes:  len(req.Source),
			TuneCount:    len(book.Order),
			WarningCount: warnings,
			ErrorCount:   errors,
			DurationMS:   int(duration.Milliseconds()),
		}
		if dbErr := h.db.Create(&entry).Error; dbErr != nil {
			logger.Warn("Failed to record parse log", logger.Fields{
				"request_id": entry.RequestID,
				"error":      dbErr.Error(),
			})
		}
	}

	c.JSON(http.StatusOK, ParseResponse{
		Tunes:       bookViews(book),
		Diagnostics: diags,
		RequestID:   c.GetString("request_id"),
	})
}

// parseOptions merges the configured parser defaults with per-request
// overrides into pipeline options.
func parseOptions(cfg *config.Config, version string, strict bool, propagation string) ([]abc.Option, error) {
	var opts []abc.Option

	if version == "" {
		version = cfg.DefaultFormatVersion
	}
	if version != "" {
		v, err := field.ParseVersion(version)
		if err != nil {
			return nil, err
		}
		opts = append(opts, abc.WithVersion(v))
	}

	if strict || cfg.StrictLexing {
		opts = append(opts, abc.Strict())
	}

	if propagation == "" {
		propagation = cfg.PropagateAccidentals
	}
	if propagation != "" {
		mode, err := field.ParsePropagationMode(propagation)
		if err != nil {
			return nil, err
		}
		opts = append(opts, abc.WithPropagation(mode))
	}

	return opts, nil
}

func countDiagnostics(diags []diag.Diagnostic) (warnings, errors int) {
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			errors++
		} else {
			warnings++
		}
	}
	return warnings, errors
}

func bookViews(book *structure.TuneBook) []*TuneView {
	views := make([]*TuneView, 0, len(book.Order))
	for _, ref := range book.Order {
		views = append(views, tuneView(book.Tunes[ref]))
	}
	return views
}

func tuneView(tune *structure.Tune) *TuneView {
	view := &TuneView{
		Ref:    tune.Ref,
		Title:  tune.Title(),
		Voices: make(map[string]*VoiceView, len(tune.Voices)),
	}
	for _, id := range tune.VoiceIDs() {
		voice := tune.Voices[id]
		vv := &VoiceView{ID: id}
		for _, m := range voice.Measures() {
			mv := &MeasureView{Tokens: m.Tokens}
			if m.Left != nil {
				mv.Left = m.Left.Src
			}
			if m.Right != nil {
				mv.Right = m.Right.Src
			}
			vv.Measures = append(vv.Measures, mv)
		}
		view.Voices[id] = vv
	}
	return view
}
