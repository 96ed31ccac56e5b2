package http

import (
	"time"

	"github.com/DRSN-tech/taste-backend/internal/domain"
)

type CompatibilityResponse struct {
	UserID      int64   `json:"user_id"`
	OtherUserID int64   `json:"other_user_id"`
	Score       float64 `json:"score"`
	Method      string  `json:"method"`
}

type RecommendationResponse struct {
	ItemType   string  `json:"item_type"`
	ItemID     int64   `json:"item_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Similarity float64 `json:"similarity"`
	Popularity *int    `json:"popularity,omitempty"`
	Source     string  `json:"source"`
}

type RecommendationsResponse struct {
	UserID          int64                    `json:"user_id"`
	Recommendations []RecommendationResponse `json:"recommendations"`
}

type EmbeddingResponse struct {
	UserID    int64 `json:"user_id"`
	Dimension int   `json:"dimension"`
	Updated   bool  `json:"updated"`
}

type SimilarUserResponse struct {
	UserID     int64   `json:"user_id"`
	Similarity float64 `json:"similarity"`
	Score      float64 `json:"score"`
}

type SimilarUsersResponse struct {
	UserID int64                 `json:"user_id"`
	Users  []SimilarUserResponse `json:"users"`
}

type RefreshRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

type RefreshResponse struct {
	ReportID   string    `json:"report_id"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Empty      int       `json:"empty"`
	Failed     int       `json:"failed"`
	FailedIDs  []int64   `json:"failed_ids,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func toRecommendationsResponse(userID int64, recs []domain.Recommendation) *RecommendationsResponse {
	out := make([]RecommendationResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, RecommendationResponse{
			ItemType:   string(r.Item.Type),
			ItemID:     r.Item.ID,
			Title:      r.Title,
			Artist:     r.Artist,
			Similarity: r.Similarity,
			Popularity: r.Popularity,
			Source:     string(r.Source),
		})
	}
	return &RecommendationsResponse{UserID: userID, Recommendations: out}
}

func toSimilarUsersResponse(userID int64, users []domain.SimilarUser) *SimilarUsersResponse {
	out := make([]SimilarUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, SimilarUserResponse{UserID: u.UserID, Similarity: u.Similarity, Score: u.Score})
	}
	return &SimilarUsersResponse{UserID: userID, Users: out}
}

func toRefreshResponse(report *domain.RefreshReport) *RefreshResponse {
	return &RefreshResponse{
		ReportID:   report.ID,
		Total:      report.Total,
		Processed:  report.Processed,
		Empty:      report.Empty,
		Failed:     report.Failed,
		FailedIDs:  report.FailedIDs,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
}
