package handler

import (
	"time"

	"github.com/msomdec/typing-exam/internal/domain"
)

// ResultDTO is the JSON representation of a recorded attempt.
type ResultDTO struct {
	ID                int64  `json:"id"`
	StudentID         int64  `json:"studentId"`
	StudentName       string `json:"studentName"`
	ApplicationNumber string `json:"applicationNumber"`
	ContentID         int64  `json:"paragraphId"`
	Symbols           int    `json:"symbols"`
	OriginalLength    int    `json:"originalLength"`
	Seconds           int    `json:"seconds"`
	Accuracy          int    `json:"accuracy"`
	WPM               int    `json:"wpm"`
	Text              string `json:"text"`
	SubmittedAt       string `json:"submittedAt"`
}

func toResultDTO(r domain.AttemptRow) ResultDTO {
	return ResultDTO{
		ID:                r.ID,
		StudentID:         r.StudentID,
		StudentName:       r.StudentName,
		ApplicationNumber: r.ApplicationNumber,
		ContentID:         r.ContentID,
		Symbols:           r.Symbols,
		OriginalLength:    r.OriginalLength,
		Seconds:           r.Seconds,
		Accuracy:          r.Accuracy,
		WPM:               r.WPM,
		Text:              r.Text,
		SubmittedAt:       r.SubmittedAt.UTC().Format(time.RFC3339),
	}
}

func toResultDTOs(rows []domain.AttemptRow) []ResultDTO {
	dtos := make([]ResultDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toResultDTO(r)
	}
	return dtos
}
