package domain

import "time"

// RefreshReport: итог массового пересчёта эмбеддингов
type RefreshReport struct {
	ID          string
	Total       int
	Processed   int
	Empty       int // пользователи без признаков: эмбеддинг не изменился
	Failed      int
	FailedIDs   []int64
	StartedAt   time.Time
	FinishedAt  time.Time
	TriggeredBy string
}

// ReportObject описывает отчёт, который хранится в S3
type ReportObject struct {
	Bucket      string
	ObjectKey   string
	Size        int64
	ContentType string
}

func NewReportObject(bucket string, objectKey string, size int64, contentType string) *ReportObject {
	return &ReportObject{
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Size:        size,
		ContentType: contentType,
	}
}
