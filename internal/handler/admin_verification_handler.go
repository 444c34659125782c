package handler

import (
	"net/http"
	"strconv"

	"marketplace/internal/config"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 出品者審査の管理API
type AdminVerificationHandler struct {
	uc *usecase.VerificationUsecase
}

func NewAdminVerificationHandler(uc *usecase.VerificationUsecase) *AdminVerificationHandler {
	return &AdminVerificationHandler{uc: uc}
}

type VerificationUpdateRequest struct {
	Status          string `json:"status"`
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason"`
	TrustBadges     string `json:"trust_badges"`
}

type DocumentReviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

func (h *AdminVerificationHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/sellers", h.listSellers)
	admin.GET("/sellers/:id/documents", h.listDocuments)
	admin.PUT("/sellers/:id/verification", h.updateVerification)
	admin.PUT("/documents/:id/review", h.reviewDocument)
}

func (h *AdminVerificationHandler) listSellers(c echo.Context) error {
	page, limit, ok := pageLimitParams(c, 1, 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page/limit"})
	}

	//審査待ちの一覧が主用途なので default は pending
	status := c.QueryParam("status")
	if status == "" {
		status = "pending"
	}

	items, total, err := h.uc.ListSellers(c.Request().Context(), status, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *AdminVerificationHandler) listDocuments(c echo.Context) error {
	sellerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	docs, err := h.uc.ListSellerDocuments(c.Request().Context(), sellerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"documents": docs})
}

func (h *AdminVerificationHandler) updateVerification(c echo.Context) error {
	sellerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req VerificationUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.uc.UpdateVerification(c.Request().Context(), adminID, sellerID, usecase.UpdateVerificationInput{
		Status:          req.Status,
		Notes:           req.Notes,
		RejectionReason: req.RejectionReason,
		TrustBadges:     req.TrustBadges,
	}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "verification updated"})
}

func (h *AdminVerificationHandler) reviewDocument(c echo.Context) error {
	docID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req DocumentReviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	if err := h.uc.ReviewDocument(c.Request().Context(), adminID, docID, usecase.ReviewDocumentInput{
		Approve: req.Approve,
		Note:    req.Note,
	}); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "document reviewed"})
}
