package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
	"github.com/kaprika-press/card-services/internal/cardsvc/service"
	"github.com/kaprika-press/card-services/internal/cardsvc/store"
	"github.com/kaprika-press/card-services/internal/render"
)

const maxUploadBytes = 16 << 20

// identityFromForm pulls the shared multipart fields for both issuance
// flows. The photo is read fully into memory, renders work on buffers.
func identityFromForm(r *http.Request) (service.Identity, []byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return service.Identity{}, nil, err
	}

	identity := service.Identity{
		FirstName:       r.FormValue("firstName"),
		LastName:        r.FormValue("lastName"),
		Alias:           r.FormValue("alias"),
		Role:            r.FormValue("role"),
		Email:           r.FormValue("email"),
		Phone:           r.FormValue("phone"),
		DeliveryAddress: r.FormValue("deliveryAddress"),
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		// missing photo is a validation outcome, not a transport error
		return identity, nil, nil
	}
	defer file.Close()

	photo, err := io.ReadAll(file)
	if err != nil {
		return service.Identity{}, nil, err
	}
	return identity, photo, nil
}

func (h *Handler) MintCardHandler(w http.ResponseWriter, r *http.Request) {
	identity, photo, err := identityFromForm(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	result, err := h.service.MintCard(r.Context(), service.MintRequest{
		Wallet:   r.FormValue("wallet"),
		Identity: identity,
		Photo:    photo,
	})
	if err != nil {
		h.issuanceError(w, r, "mint-card", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":              true,
		"card":            result.Record,
		"txHash":          result.TxHash,
		"tokenURI":        result.TokenURI,
		"verificationUrl": result.VerificationURL,
		"ipfsImage":       result.IPFSImage,
		"ipfsPdf":         result.IPFSPdf,
		"ipfsMetadata":    result.IPFSMetadata,
	})
}

func (h *Handler) PrintCardHandler(w http.ResponseWriter, r *http.Request) {
	identity, photo, err := identityFromForm(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	record, err := h.service.CreatePrintCard(r.Context(), service.PrintRequest{
		Identity: identity,
		Photo:    photo,
	})
	if err != nil {
		h.issuanceError(w, r, "print-card", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":              true,
		"card":            record,
		"imageUrl":        record.ImageUrl,
		"pdfUrl":          record.PdfUrl,
		"verificationUrl": h.service.VerificationURL(record.CardId),
	})
}

// issuanceError maps service failures onto the http taxonomy: validation
// and bad photos are the caller's fault, everything else is ours.
func (h *Handler) issuanceError(w http.ResponseWriter, r *http.Request, flow string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFields):
		h.writeError(w, http.StatusBadRequest, "Missing required fields")
	case errors.Is(err, render.ErrInvalidPhoto):
		h.writeError(w, http.StatusBadRequest, "Invalid photo")
	default:
		log.Errorf("Error in /v1/%s: %s", flow, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to create card")
	}
}

func (h *Handler) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListCards(r.Context())
	if err != nil {
		log.Errorf("GET /v1/admin/cards error: %s", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load cards")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "cards": cards})
}

func (h *Handler) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	cardId := chi.URLParam(r, "cardId")

	card, err := h.service.GetCard(r.Context(), cardId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Errorf("GET /v1/card/%s error: %s", cardId, err)
		h.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "card": card})
}

func (h *Handler) PatchCardHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CardId string `json:"cardId"`
		models.CardPatch
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.CardId == "" {
		h.writeError(w, http.StatusBadRequest, "cardId is required")
		return
	}

	updated, err := h.service.PatchCard(r.Context(), body.CardId, body.CardPatch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Errorf("PATCH /v1/admin/cards error: %s", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to update card")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "card": updated})
}

func (h *Handler) CardFileHandler(w http.ResponseWriter, r *http.Request) {
	cardId := chi.URLParam(r, "cardId")
	kind := chi.URLParam(r, "kind")

	var ext, contentType string
	switch kind {
	case "image":
		ext, contentType = "png", "image/png"
	case "pdf":
		ext, contentType = "pdf", "application/pdf"
	default:
		h.writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	path := h.service.ArtifactPath(cardId, ext)
	if _, err := os.Stat(path); err != nil {
		h.writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+cardId+"."+ext+`"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) MessageHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Wallets []string `json:"wallets"`
		Message string   `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wallets := make([]string, 0, len(body.Wallets))
	for _, wallet := range body.Wallets {
		if trimmed := strings.TrimSpace(wallet); trimmed != "" {
			wallets = append(wallets, trimmed)
		}
	}
	message := strings.TrimSpace(body.Message)

	if len(wallets) == 0 {
		h.writeError(w, http.StatusBadRequest, "No recipient wallets provided")
		return
	}
	if message == "" {
		h.writeError(w, http.StatusBadRequest, "Message is empty")
		return
	}

	if h.broker == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Notification channel not configured")
		return
	}

	h.broker.PublishBroadcast(wallets, message)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"recipients": len(wallets),
	})
}
