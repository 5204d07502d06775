package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"icu-bed-management/internal/models"
	"icu-bed-management/internal/service"
	"icu-bed-management/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BedHandler struct {
	bedService       *service.BedService
	rosterService    *service.RosterService
	dischargeService *service.DischargeService
	voiceService     *service.VoiceService
	maxAudioBytes    int64
	logger           *zap.Logger
}

func NewBedHandler(
	bedService *service.BedService,
	rosterService *service.RosterService,
	dischargeService *service.DischargeService,
	voiceService *service.VoiceService,
	maxAudioBytes int64,
	logger *zap.Logger,
) *BedHandler {
	return &BedHandler{
		bedService:       bedService,
		rosterService:    rosterService,
		dischargeService: dischargeService,
		voiceService:     voiceService,
		maxAudioBytes:    maxAudioBytes,
		logger:           logger,
	}
}

// ExtubationCountsRequest carries all four counters of a manual correction
type ExtubationCountsRequest struct {
	Success    int `json:"success"`
	Fail       int `json:"fail"`
	Accidental int `json:"accidental"`
	Self       int `json:"self"`
}

// ManualUpdateRequest is a partial bed edit; omitted fields are left untouched
type ManualUpdateRequest struct {
	Initials     *string `json:"initials"`
	Status       *string `json:"status" binding:"omitempty,oneof=Vago VMI VNI Desmame Alta"`
	Narrative    *string `json:"narrative"`
	ClinicalNote *string `json:"clinical_note"`
	// YYYY-MM-DD or RFC3339; an empty string clears the start time
	VentilationStartDate *string                  `json:"ventilation_start_date"`
	MobilityTarget       *int                     `json:"mobility_target"`
	MobilityAchieved     *int                     `json:"mobility_achieved"`
	Extubations          *ExtubationCountsRequest `json:"extubations"`
}

type ClinicalNoteRequest struct {
	Record *string `json:"record" binding:"required"`
}

// ListBeds returns the roster
// GET /api/beds
func (h *BedHandler) ListBeds(c *gin.Context) {
	beds, err := h.rosterService.Roster(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"beds":  beds,
		"count": len(beds),
	})
}

// GetBed returns one bed with its newest history first
// GET /api/beds/:bed?recent=N
func (h *BedHandler) GetBed(c *gin.Context) {
	bedNumber, ok := bedParam(c)
	if !ok {
		return
	}

	recent := 0
	if raw := c.Query("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.ErrorResponse(c, http.StatusBadRequest, "recent must be a non-negative integer")
			return
		}
		recent = n
	}

	bed, err := h.bedService.GetBed(c.Request.Context(), bedNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"bed":              bed,
		"ventilation_days": bed.VentilationDays(time.Now()),
		"recent_history":   bed.RecentHistory(recent),
	})
}

// UpdateBed applies a manual edit
// PATCH /api/beds/:bed
func (h *BedHandler) UpdateBed(c *gin.Context) {
	bedNumber, ok := bedParam(c)
	if !ok {
		return
	}

	var req ManualUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	update, err := req.toBedUpdate()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	bed, err := h.bedService.SaveManual(c.Request.Context(), bedNumber, update)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondWithRoster(c, gin.H{"bed": bed})
}

// UpdateClinicalNote replaces the bed's formatted clinical record
// PUT /api/beds/:bed/record
func (h *BedHandler) UpdateClinicalNote(c *gin.Context) {
	bedNumber, ok := bedParam(c)
	if !ok {
		return
	}

	var req ClinicalNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	bed, err := h.bedService.UpdateClinicalNote(c.Request.Context(), bedNumber, *req.Record)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondWithRoster(c, gin.H{"bed": bed})
}

// UploadRecording runs a voice recording through extraction and reconciles the result
// POST /api/beds/:bed/recordings (multipart, field "file")
func (h *BedHandler) UploadRecording(c *gin.Context) {
	bedNumber, ok := bedParam(c)
	if !ok {
		return
	}

	if h.maxAudioBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxAudioBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Recording is too large")
			return
		}
		utils.ErrorResponse(c, http.StatusBadRequest, "Missing audio file in field 'file'")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unreadable audio file")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Unreadable audio file")
		return
	}
	if len(audio) == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Recording is empty")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	bed, err := h.voiceService.ProcessRecording(c.Request.Context(), bedNumber, audio, mimeType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondWithRoster(c, gin.H{"bed": bed})
}

// Discharge archives the current stay and resets the bed
// POST /api/beds/:bed/discharge
func (h *BedHandler) Discharge(c *gin.Context) {
	bedNumber, ok := bedParam(c)
	if !ok {
		return
	}

	result, err := h.dischargeService.Discharge(c.Request.Context(), bedNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondWithRoster(c, gin.H{
		"bed":      result.Bed,
		"record":   result.Record,
		"archived": result.Record != nil,
	})
}

// GetIndicators returns the bed's indicator summary as copyable text
// GET /api/beds/:bed/indicators
func (h *BedHandler) GetIndicators(c *gin.Context) {
	bedNumber, ok := bedParam(c)
	if !ok {
		return
	}

	text, err := h.bedService.Indicators(c.Request.Context(), bedNumber)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if c.Query("format") == "text" {
		utils.TextResponse(c, text)
		return
	}
	utils.SuccessResponse(c, gin.H{
		"bed_number": bedNumber,
		"text":       text,
	})
}

// respondWithRoster attaches the refreshed roster so clients redraw from one response
func (h *BedHandler) respondWithRoster(c *gin.Context, data gin.H) {
	beds, err := h.rosterService.Roster(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to refresh roster after mutation", zap.Error(err))
	} else {
		data["roster"] = beds
	}
	utils.SuccessResponse(c, data)
}

func (r ManualUpdateRequest) toBedUpdate() (service.BedUpdate, error) {
	u := service.BedUpdate{
		Source:           service.SourceManual,
		Initials:         r.Initials,
		Narrative:        r.Narrative,
		ClinicalNote:     r.ClinicalNote,
		MobilityTarget:   r.MobilityTarget,
		MobilityAchieved: r.MobilityAchieved,
	}

	if r.Status != nil {
		status := models.BedStatus(*r.Status)
		u.Status = &status
	}

	if r.MobilityTarget != nil && *r.MobilityTarget < 0 {
		return u, fmt.Errorf("mobility_target must not be negative")
	}
	if r.MobilityAchieved != nil && *r.MobilityAchieved < 0 {
		return u, fmt.Errorf("mobility_achieved must not be negative")
	}

	if r.VentilationStartDate != nil {
		raw := strings.TrimSpace(*r.VentilationStartDate)
		if raw == "" {
			u.ClearVentilationStart = true
		} else {
			start, err := parseDate(raw)
			if err != nil {
				return u, err
			}
			u.VentilationStartTime = &start
		}
	}

	if e := r.Extubations; e != nil {
		if e.Success < 0 || e.Fail < 0 || e.Accidental < 0 || e.Self < 0 {
			return u, fmt.Errorf("extubation counters must not be negative")
		}
		u.ExtubationCounts = &models.ExtubationCounters{
			Success:    e.Success,
			Fail:       e.Fail,
			Accidental: e.Accidental,
			Self:       e.Self,
		}
	}

	return u, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("ventilation_start_date must be YYYY-MM-DD or RFC3339, got %q", raw)
}
