package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// atoiOr parses s or falls back to def.
func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// getUserID reads the id the JWT middleware attached.
func getUserID(c echo.Context) (uint, bool) {
	switch v := c.Get("user_id").(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	default:
		return 0, false
	}
}

func getRole(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}
