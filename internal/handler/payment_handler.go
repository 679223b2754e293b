package handler

import (
	"net/http"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /payments（決済サービス側）のHTTP
type PaymentHandler struct {
	uc *usecase.SettlementUsecase
}

func NewPaymentHandler(uc *usecase.SettlementUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type InitiatePaymentRequest struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.initiate)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/refund", h.refund)
}

func (h *PaymentHandler) initiate(c echo.Context) error {
	pr, ok := principalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.Initiate(c.Request().Context(), pr, usecase.InitiatePaymentInput{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Method:   req.Method,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *PaymentHandler) list(c echo.Context) error {
	pr, ok := principalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.List(c.Request().Context(), pr)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) detail(c echo.Context) error {
	pr, ok := principalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Get(c.Request().Context(), pr, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) refund(c echo.Context) error {
	pr, ok := principalFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.Refund(c.Request().Context(), pr, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
