package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/kaprika-press/card-services/internal/cardsvc/broker"
	"github.com/kaprika-press/card-services/internal/cardsvc/service"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	service   *service.CardService
	broker    *broker.Broker // nil when NATS is not configured
	outputDir string
}

func NewHandler(svc *service.CardService, b *broker.Broker, outputDir string) *Handler {
	return &Handler{service: svc, broker: b, outputDir: outputDir}
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": 8003022,
		"exp":        expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: admin JWT for testing expires soon : %s", tokenString)
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, map[string]interface{}{"ok": false, "error": message})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"message": "card service is running at port " + os.Getenv("CARD_SERVICE_PORT"),
	})
}
