package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"gatepass-backend/internal/client"
	"gatepass-backend/internal/dto"
	"gatepass-backend/internal/service"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
	}
}

func (h *CheckoutHandler) CreateCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.checkoutService.CreateCheckout(ctx, &req)
	if err != nil {
		var mismatch *client.AmountMismatchError
		if errors.As(err, &mismatch) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "amount mismatch")
		}
		var unavailable *client.ProviderUnavailableError
		if errors.As(err, &unavailable) {
			return echo.NewHTTPError(http.StatusBadGateway, "payment provider unavailable")
		}
		return err
	}

	return c.JSON(http.StatusCreated, resp)
}
