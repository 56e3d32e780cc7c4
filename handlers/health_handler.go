package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GET /healthz
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}
