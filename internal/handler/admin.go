package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"gatepass-backend/internal/dto"
	"gatepass-backend/internal/model"
	"gatepass-backend/internal/service"
)

type AdminHandler struct {
	pollingService service.PollingService
	payeeService   service.PayeeService
}

func NewAdminHandler(pollingService service.PollingService, payeeService service.PayeeService) *AdminHandler {
	return &AdminHandler{
		pollingService: pollingService,
		payeeService:   payeeService,
	}
}

// RunPollingCycle is the manual trigger; it shares all semantics with the
// scheduler loop, including the non-overlap guarantee.
func (h *AdminHandler) RunPollingCycle(c echo.Context) error {
	ctx := c.Request().Context()

	stats := h.pollingService.RunCycle(ctx)

	return c.JSON(http.StatusOK, stats)
}

// ConnectPayee stores the token set obtained from the provider's OAuth flow
// for an organizer. The redirect/code exchange happens out of band; this
// endpoint receives the resulting tokens.
func (h *AdminHandler) ConnectPayee(c echo.Context) error {
	ctx := c.Request().Context()

	payeeCode := c.Param("code")

	var req dto.ConnectPayeeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh_token is required")
	}

	err := h.payeeService.ConnectPayee(ctx, payeeCode, &model.SumUpToken{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    req.ExpiresIn,
		Scope:        req.Scope,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "connected",
	})
}

func (h *AdminHandler) PayeeStatus(c echo.Context) error {
	ctx := c.Request().Context()

	payeeCode := c.Param("code")

	connected, err := h.payeeService.IsConnected(ctx, payeeCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]bool{
		"connected": connected,
	})
}

func (h *AdminHandler) DisconnectPayee(c echo.Context) error {
	ctx := c.Request().Context()

	payeeCode := c.Param("code")

	if err := h.payeeService.Disconnect(ctx, payeeCode); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "disconnected",
	})
}
