package server

import (
	"github.com/labstack/echo/v4"

	"eon-server/internal/utility"
)

// deviceSocketHandler keeps a websocket open so the server can push refresh notices to a device.
func (s *Server) deviceSocketHandler(c echo.Context) error {
	deviceID := c.Param("device_id")

	ws, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	s.Hub.Register(deviceID, ws)
	defer s.Hub.Unregister(deviceID, ws)

	// Clients don't send anything; reading detects the disconnect.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			loggerFrom(c).Debug().Err(err).Str("device_id", deviceID).Msg("WebSocket read ended")
			return nil
		}
	}
}
