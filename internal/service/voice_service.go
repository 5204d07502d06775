package service

import (
	"context"
	"fmt"
	"time"

	"icu-bed-management/internal/extraction"
	"icu-bed-management/internal/models"

	"go.uber.org/zap"
)

type VoiceService struct {
	beds      *BedService
	extractor extraction.Extractor
	timeout   time.Duration
	logger    *zap.Logger
}

func NewVoiceService(beds *BedService, extractor extraction.Extractor, timeout time.Duration, logger *zap.Logger) *VoiceService {
	return &VoiceService{
		beds:      beds,
		extractor: extractor,
		timeout:   timeout,
		logger:    logger,
	}
}

// ProcessRecording sends a clip through the extraction pipeline and reconciles the
// result into the bed. Any extraction failure, including a timeout, leaves the bed untouched.
func (s *VoiceService) ProcessRecording(ctx context.Context, bedNumber string, audio []byte, mimeType string) (*models.Bed, error) {
	// Fail fast on unknown beds before the slow call
	if _, err := s.beds.GetBed(ctx, bedNumber); err != nil {
		return nil, err
	}

	extractCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.extractor.Extract(extractCtx, audio, mimeType, bedNumber)
	if err != nil {
		s.logger.Warn("Extraction failed, bed not modified",
			zap.String("bed_number", bedNumber),
			zap.Error(err),
		)
		return nil, fmt.Errorf("extraction for bed %s: %w", bedNumber, err)
	}

	if result.ReportedTotal != nil {
		s.logger.Info("Ignoring extraction-reported extubation total; totals are derived from counters",
			zap.String("bed_number", bedNumber),
			zap.Int("reported_total", *result.ReportedTotal),
		)
	}

	update := UpdateFromExtraction(result)
	if update.IsEmpty() {
		s.logger.Info("Extraction carried nothing actionable", zap.String("bed_number", bedNumber))
	} else if absent := update.AbsentFields(); len(absent) > 0 {
		s.logger.Info("Partial extraction result",
			zap.String("bed_number", bedNumber),
			zap.Strings("absent_fields", absent),
		)
	}

	return s.beds.ApplyExtraction(ctx, bedNumber, update)
}

// UpdateFromExtraction maps an extraction payload onto a reconciliation update
func UpdateFromExtraction(r *extraction.Result) BedUpdate {
	return BedUpdate{
		Source:               SourceExtraction,
		Narrative:            r.HistoryEntry,
		Initials:             r.Initials,
		Status:               r.Status,
		ClinicalNote:         r.FormattedRecord,
		VentilationStartTime: r.VentilationStart,
		MobilityTarget:       r.MobilityTarget,
		MobilityAchieved:     r.MobilityAchieved,
		ExtubationCounts:     r.ExtubationCounts,
		ExtubationIncrement:  r.ExtubationIncrement,
	}
}
