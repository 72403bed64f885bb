package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
	"github.com/kaprika-press/card-services/internal/cardsvc/store"
	"github.com/kaprika-press/card-services/internal/ipfs"
	"github.com/kaprika-press/card-services/internal/render"
)

// ErrMissingFields is the synchronous validation failure, raised before any
// side effect.
var ErrMissingFields = errors.New("missing required fields")

const (
	defaultMintRole  = "PRESS"
	defaultPrintRole = "Journalist"

	mintIdPrefix = "KAP"
)

// CardRenderer produces the card artifacts. Satisfied by *render.Renderer.
type CardRenderer interface {
	Render(identity render.Identity, photo []byte) (pngBytes, pdfBytes []byte, err error)
}

// LedgerWriter is the on-chain collaborator. Nil means chain writes are not
// configured; every call is best effort.
type LedgerWriter interface {
	MintID(ctx context.Context, owner, tokenURI string) (string, error)
	SetRevoked(ctx context.Context, tokenID int64, revoked bool) error
}

// ContentPublisher pins artifacts to the content-addressed network. Nil
// result means the upload failed and the caller falls back to local urls.
type ContentPublisher interface {
	Pin(ctx context.Context, data []byte, mimeType, name string) *ipfs.PinResult
	PinMetadata(ctx context.Context, md ipfs.Metadata) *ipfs.PinResult
}

// EventPublisher announces lifecycle changes. Satisfied by *broker.Broker.
type EventPublisher interface {
	PublishCardIssued(cardId, wallet string)
	PublishCardRevoked(cardId, wallet string)
}

// CardService sequences issuance: allocate, render, persist artifacts,
// optionally publish and mint, then store the record. Optional collaborators
// may be nil.
type CardService struct {
	store    store.CardStore
	renderer CardRenderer

	mintAllocator  Allocator
	printAllocator Allocator

	publisher ContentPublisher
	ledger    LedgerWriter
	events    EventPublisher

	baseURL   string
	outputDir string
}

func NewCardService(
	cardStore store.CardStore,
	renderer CardRenderer,
	publisher ContentPublisher,
	ledger LedgerWriter,
	events EventPublisher,
	baseURL, outputDir string,
) *CardService {
	return &CardService{
		store:          cardStore,
		renderer:       renderer,
		mintAllocator:  NewTimestampAllocator(mintIdPrefix),
		printAllocator: NewRandomNumericAllocator(cardStore),
		publisher:      publisher,
		ledger:         ledger,
		events:         events,
		baseURL:        baseURL,
		outputDir:      outputDir,
	}
}

// Identity carries the user-supplied card fields shared by both flows.
type Identity struct {
	FirstName       string
	LastName        string
	Alias           string
	Role            string
	Email           string
	Phone           string
	DeliveryAddress string
}

type MintRequest struct {
	Wallet string
	Identity
	Photo []byte
}

type PrintRequest struct {
	Identity
	Photo []byte
}

// MintResult reports everything the mint flow obtained. Optional steps that
// failed leave their fields nil, the caller inspects them to see what
// actually completed.
type MintResult struct {
	Record          models.CardRecord `json:"card"`
	TxHash          *string           `json:"txHash"`
	TokenURI        string            `json:"tokenURI"`
	VerificationURL string            `json:"verificationUrl"`

	IPFSImage    *ipfs.PinResult `json:"ipfsImage"`
	IPFSPdf      *ipfs.PinResult `json:"ipfsPdf"`
	IPFSMetadata *ipfs.PinResult `json:"ipfsMetadata"`
}

// MintCard runs the wallet-backed issuance flow.
func (s *CardService) MintCard(ctx context.Context, req MintRequest) (*MintResult, error) {
	wallet := strings.TrimSpace(req.Wallet)
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if wallet == "" || firstName == "" || lastName == "" || len(req.Photo) == 0 {
		return nil, ErrMissingFields
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultMintRole
	}
	fullName := strings.TrimSpace(firstName + " " + lastName)

	cardId, err := s.mintAllocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	issueDate, expirationDate := issuancePeriod(time.Now().UTC())

	identity := render.Identity{
		FullName:       fullName,
		Alias:          req.Alias,
		Role:           role,
		CardId:         cardId,
		IssueDate:      issueDate,
		ExpirationDate: expirationDate,
	}

	pngBytes, pdfBytes, err := s.renderer.Render(identity, req.Photo)
	if err != nil {
		return nil, err
	}

	imageUrl, pdfUrl, err := s.writeLocalOutputs(cardId, pngBytes, pdfBytes)
	if err != nil {
		return nil, err
	}

	verificationURL := render.VerificationURL(s.baseURL, cardId)

	// Default token URI is the plain document link, upgraded to the ipfs
	// metadata reference only when the whole publish chain succeeded.
	tokenURI := pdfUrl
	var ipfsImage, ipfsPdf, ipfsMetadata *ipfs.PinResult

	if s.publisher != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			ipfsImage = s.publisher.Pin(gctx, pngBytes, "image/png", cardId+".png")
			return nil
		})
		g.Go(func() error {
			ipfsPdf = s.publisher.Pin(gctx, pdfBytes, "application/pdf", cardId+".pdf")
			return nil
		})
		g.Wait()

		if ipfsImage != nil && ipfsPdf != nil {
			md := ipfs.BuildMetadata(ipfs.MetadataInput{
				FullName:       fullName,
				Role:           role,
				CardId:         cardId,
				IssueDate:      issueDate,
				ExpirationDate: expirationDate,
				VerifyURL:      verificationURL,
			}, ipfsImage, ipfsPdf)

			ipfsMetadata = s.publisher.PinMetadata(ctx, md)
			if ipfsMetadata != nil {
				tokenURI = ipfsMetadata.URI()
			}
		}
	}

	var txHash *string
	if s.ledger != nil {
		hash, err := s.ledger.MintID(ctx, wallet, tokenURI)
		if err != nil {
			log.Errorf("minting transaction failed for card %s: %s", cardId, err)
		} else {
			txHash = &hash
		}
	}

	now := time.Now().UTC()
	record := models.CardRecord{
		CardId:          cardId,
		Wallet:          wallet,
		FullName:        fullName,
		Role:            role,
		Alias:           optional(req.Alias),
		Email:           optional(req.Email),
		Phone:           optional(req.Phone),
		DeliveryAddress: optional(req.DeliveryAddress),
		ImageUrl:        imageUrl,
		PdfUrl:          pdfUrl,
		TxHash:          txHash,
		IssueDate:       issueDate,
		ExpirationDate:  expirationDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Add(ctx, record); err != nil {
		return nil, fmt.Errorf("could not persist card record: %w", err)
	}

	if s.events != nil {
		s.events.PublishCardIssued(cardId, wallet)
	}

	return &MintResult{
		Record:          record,
		TxHash:          txHash,
		TokenURI:        tokenURI,
		VerificationURL: verificationURL,
		IPFSImage:       ipfsImage,
		IPFSPdf:         ipfsPdf,
		IPFSMetadata:    ipfsMetadata,
	}, nil
}

// CreatePrintCard runs the print-only flow: no wallet, no chain, no ipfs.
func (s *CardService) CreatePrintCard(ctx context.Context, req PrintRequest) (*models.CardRecord, error) {
	firstName := strings.TrimSpace(req.FirstName)
	lastName := strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" || len(req.Photo) == 0 {
		return nil, ErrMissingFields
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultPrintRole
	}
	fullName := strings.TrimSpace(firstName + " " + lastName)

	cardId, err := s.printAllocator.Allocate(ctx)
	if err != nil {
		return nil, err
	}

	issueDate, expirationDate := issuancePeriod(time.Now().UTC())

	identity := render.Identity{
		FullName:       fullName,
		Alias:          req.Alias,
		Role:           role,
		CardId:         cardId,
		IssueDate:      issueDate,
		ExpirationDate: expirationDate,
	}

	pngBytes, pdfBytes, err := s.renderer.Render(identity, req.Photo)
	if err != nil {
		return nil, err
	}

	imageUrl, pdfUrl, err := s.writeLocalOutputs(cardId, pngBytes, pdfBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := models.CardRecord{
		CardId:          cardId,
		Wallet:          "", // print version only
		FullName:        fullName,
		Role:            role,
		Alias:           optional(req.Alias),
		Email:           optional(req.Email),
		Phone:           optional(req.Phone),
		DeliveryAddress: optional(req.DeliveryAddress),
		ImageUrl:        imageUrl,
		PdfUrl:          pdfUrl,
		IssueDate:       issueDate,
		ExpirationDate:  expirationDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Add(ctx, record); err != nil {
		return nil, fmt.Errorf("could not persist card record: %w", err)
	}

	if s.events != nil {
		s.events.PublishCardIssued(cardId, "")
	}

	return &record, nil
}

func (s *CardService) ListCards(ctx context.Context) ([]models.CardRecord, error) {
	return s.store.GetAll(ctx)
}

func (s *CardService) GetCard(ctx context.Context, cardId string) (*models.CardRecord, error) {
	return s.store.Get(ctx, cardId)
}

// PatchCard applies admin flag changes. Setting revoked with a known token
// id also attempts the on-chain revocation; the local update proceeds even
// when that call fails.
func (s *CardService) PatchCard(ctx context.Context, cardId string, patch models.CardPatch) (*models.CardRecord, error) {
	if patch.Revoked != nil && *patch.Revoked && s.ledger != nil {
		tokenId := patch.TokenId
		if tokenId == nil {
			if existing, err := s.store.Get(ctx, cardId); err == nil {
				tokenId = existing.TokenId
			}
		}
		if tokenId != nil {
			if err := s.ledger.SetRevoked(ctx, *tokenId, true); err != nil {
				log.Errorf("setRevoked on-chain failed for card %s: %s", cardId, err)
			}
		}
	}

	updated, err := s.store.Update(ctx, cardId, patch)
	if err != nil {
		return nil, err
	}

	if patch.Revoked != nil && *patch.Revoked && s.events != nil {
		s.events.PublishCardRevoked(cardId, updated.Wallet)
	}

	return updated, nil
}

// VerificationURL is the public address that proves a card exists.
func (s *CardService) VerificationURL(cardId string) string {
	return render.VerificationURL(s.baseURL, cardId)
}

// ArtifactPath resolves the on-disk location of a generated artifact.
func (s *CardService) ArtifactPath(cardId, ext string) string {
	return filepath.Join(s.outputDir, cardId+"."+ext)
}

// writeLocalOutputs persists both artifacts for printing and direct access
// and returns their public urls.
func (s *CardService) writeLocalOutputs(cardId string, pngBytes, pdfBytes []byte) (imageUrl, pdfUrl string, err error) {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("could not create output dir: %w", err)
	}

	imageName := cardId + ".png"
	pdfName := cardId + ".pdf"

	if err := os.WriteFile(filepath.Join(s.outputDir, imageName), pngBytes, 0644); err != nil {
		return "", "", fmt.Errorf("could not write card image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.outputDir, pdfName), pdfBytes, 0644); err != nil {
		return "", "", fmt.Errorf("could not write card pdf: %w", err)
	}

	return s.baseURL + "/generated/" + imageName, s.baseURL + "/generated/" + pdfName, nil
}

// issuancePeriod returns the issue date and the expiration exactly one
// calendar year later, both fixed at creation time.
func issuancePeriod(now time.Time) (issueDate, expirationDate string) {
	return now.Format("2006-01-02"), now.AddDate(1, 0, 0).Format("2006-01-02")
}

func optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
