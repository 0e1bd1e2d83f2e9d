package http

import "github.com/labstack/echo/v4"

// Handler is implemented by API packages mounted on the shared Server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
