package api

import (
	"net/http"
)

// kioskHandler serves the embedded kiosk display page.
type kioskHandler struct{}

func newKioskHandler() *kioskHandler {
	return &kioskHandler{}
}

// HandleKiosk handles GET / requests. The page polls /session/outcome and
// renders the outcome currently on display.
func (h *kioskHandler) HandleKiosk(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, kioskFS, "kiosk.html")
}
