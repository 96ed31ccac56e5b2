package http

import (
	"net/http"

	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/goccy/go-json"
)

const maxRefreshBodySize = 1 << 20

type TasteHandler struct {
	compatibilityUC  usecase.CompatibilityUC
	recommendationUC usecase.RecommendationUC
	embeddingUC      usecase.EmbeddingUC
	similarUsersUC   usecase.SimilarUsersUC
	refreshUC        usecase.RefreshUC
	defaultLimit     int
	logger           logger.Logger
}

func NewTasteHandler(
	compatibilityUC usecase.CompatibilityUC,
	recommendationUC usecase.RecommendationUC,
	embeddingUC usecase.EmbeddingUC,
	similarUsersUC usecase.SimilarUsersUC,
	refreshUC usecase.RefreshUC,
	defaultLimit int,
	logger logger.Logger,
) *TasteHandler {
	return &TasteHandler{
		compatibilityUC:  compatibilityUC,
		recommendationUC: recommendationUC,
		embeddingUC:      embeddingUC,
		similarUsersUC:   similarUsersUC,
		refreshUC:        refreshUC,
		defaultLimit:     defaultLimit,
		logger:           logger,
	}
}

// getCompatibility
//
//	@Summary		Музыкальная совместимость двух пользователей
//	@Description	Оценка 0..100 по эмбеддингам вкуса, при их отсутствии по пересечению коллекций
//	@Tags			taste
//	@Produce		json
//	@Param			id		path		int	true	"Пользователь"
//	@Param			otherID	path		int	true	"Второй пользователь"
//	@Success		200		{object}	CompatibilityResponse
//	@Failure		400		{object}	ErrorResponse	"Некорректный id"
//	@Failure		404		{object}	ErrorResponse	"Пользователь не найден"
//	@Router			/users/{id}/compatibility/{otherID} [get]
func (h *TasteHandler) getCompatibility(w http.ResponseWriter, r *http.Request) {
	userA, err := parseUserID(r, "id")
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}
	userB, err := parseUserID(r, "otherID")
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}

	res, err := h.compatibilityUC.Compatibility(r.Context(), userA, userB)
	if err != nil {
		h.logger.Warnf("compatibility failed: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &CompatibilityResponse{
		UserID:      userA,
		OtherUserID: userB,
		Score:       res.Score,
		Method:      string(res.Method),
	})
}

// getRecommendations
//
//	@Summary		Рекомендации треков
//	@Description	Треки, близкие к вкусу пользователя, без уже имеющихся в коллекции
//	@Tags			taste
//	@Produce		json
//	@Param			id		path		int	true	"Пользователь"
//	@Param			limit	query		int	false	"Сколько рекомендаций вернуть"
//	@Success		200		{object}	RecommendationsResponse
//	@Failure		400		{object}	ErrorResponse	"Некорректный id или limit"
//	@Failure		404		{object}	ErrorResponse	"Пользователь не найден"
//	@Router			/users/{id}/recommendations [get]
func (h *TasteHandler) getRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r, "id")
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}
	limit, err := parseLimit(r, h.defaultLimit)
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}

	recs, err := h.recommendationUC.GetRecommendations(r.Context(), userID, limit)
	if err != nil {
		h.logger.Warnf("recommendations failed: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRecommendationsResponse(userID, recs))
}

// aggregateEmbedding
//
//	@Summary		Пересчёт эмбеддинга вкуса
//	@Description	Синхронно пересчитывает вектор пользователя по его коллекции
//	@Tags			embeddings
//	@Produce		json
//	@Param			id	path		int	true	"Пользователь"
//	@Success		200	{object}	EmbeddingResponse
//	@Failure		400	{object}	ErrorResponse	"Некорректный id"
//	@Failure		404	{object}	ErrorResponse	"Пользователь не найден"
//	@Router			/users/{id}/embedding [post]
func (h *TasteHandler) aggregateEmbedding(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r, "id")
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}

	vec, err := h.embeddingUC.AggregateEmbeddingFor(r.Context(), userID)
	if err != nil {
		h.logger.Warnf("embedding aggregation failed: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &EmbeddingResponse{
		UserID:    userID,
		Dimension: len(vec),
		Updated:   vec != nil,
	})
}

// getSimilarUsers
//
//	@Summary		Похожие пользователи
//	@Description	Пользователи с близким эмбеддингом вкуса
//	@Tags			taste
//	@Produce		json
//	@Param			id			path		int		true	"Пользователь"
//	@Param			limit		query		int		false	"Сколько пользователей вернуть"
//	@Param			threshold	query		number	false	"Минимальная косинусная близость, -1..1"
//	@Success		200			{object}	SimilarUsersResponse
//	@Failure		400			{object}	ErrorResponse	"Некорректные параметры"
//	@Failure		404			{object}	ErrorResponse	"Пользователь не найден"
//	@Router			/users/{id}/similar [get]
func (h *TasteHandler) getSimilarUsers(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r, "id")
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}
	limit, err := parseLimit(r, 0)
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}
	threshold, err := parseThreshold(r)
	if err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, err)
		return
	}

	users, err := h.similarUsersUC.FindSimilarUsers(r.Context(), userID, limit, threshold)
	if err != nil {
		h.logger.Warnf("similar users failed: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSimilarUsersResponse(userID, users))
}

// refreshEmbeddings
//
//	@Summary		Пакетный пересчёт эмбеддингов
//	@Description	Пересчитывает эмбеддинги перечисленных пользователей и возвращает отчёт
//	@Tags			embeddings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RefreshRequest	true	"Пользователи"
//	@Success		200		{object}	RefreshResponse
//	@Failure		400		{object}	ErrorResponse	"Пустой или слишком большой список"
//	@Router			/embeddings/refresh [post]
func (h *TasteHandler) refreshEmbeddings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRefreshBodySize)

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warnf("%d %s: %v", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err)
		WriteError(w, e.Wrap(err.Error(), e.ErrStatusBadRequest))
		return
	}

	report, err := h.refreshUC.RefreshUsers(r.Context(), req.UserIDs)
	if err != nil {
		h.logger.Warnf("refresh failed: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRefreshResponse(report))
}
