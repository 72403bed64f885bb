package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaprika-press/card-services/internal/cardsvc/models"
	"github.com/kaprika-press/card-services/internal/cardsvc/store"
	"github.com/kaprika-press/card-services/internal/ipfs"
	"github.com/kaprika-press/card-services/internal/render"
)

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(identity render.Identity, photo []byte) ([]byte, []byte, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return []byte("png:" + identity.CardId), []byte("pdf:" + identity.CardId), nil
}

type fakeLedger struct {
	mintErr   error
	revokeErr error

	mintedOwner   string
	mintedURI     string
	revokedTokens []int64
}

func (f *fakeLedger) MintID(ctx context.Context, owner, tokenURI string) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	f.mintedOwner = owner
	f.mintedURI = tokenURI
	return "0xabc123", nil
}

func (f *fakeLedger) SetRevoked(ctx context.Context, tokenID int64, revoked bool) error {
	f.revokedTokens = append(f.revokedTokens, tokenID)
	return f.revokeErr
}

type fakePublisher struct {
	failImage    bool
	failPdf      bool
	failMetadata bool
}

func (f *fakePublisher) Pin(ctx context.Context, data []byte, mimeType, name string) *ipfs.PinResult {
	if mimeType == "image/png" && f.failImage {
		return nil
	}
	if mimeType == "application/pdf" && f.failPdf {
		return nil
	}
	return &ipfs.PinResult{CID: "bafy-" + name, GatewayURL: "https://bafy-" + name + ".ipfs.storacha.link"}
}

func (f *fakePublisher) PinMetadata(ctx context.Context, md ipfs.Metadata) *ipfs.PinResult {
	if f.failMetadata {
		return nil
	}
	return &ipfs.PinResult{CID: "bafy-metadata"}
}

type fakeEvents struct {
	issued  []string
	revoked []string
}

func (f *fakeEvents) PublishCardIssued(cardId, wallet string)  { f.issued = append(f.issued, cardId) }
func (f *fakeEvents) PublishCardRevoked(cardId, wallet string) { f.revoked = append(f.revoked, cardId) }

func newTestService(t *testing.T, publisher ContentPublisher, ledger LedgerWriter, events EventPublisher) (*CardService, store.CardStore) {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	svc := NewCardService(s, &fakeRenderer{}, publisher, ledger, events,
		"http://localhost:8080", t.TempDir())
	return svc, s
}

func printRequest() PrintRequest {
	return PrintRequest{
		Identity: Identity{FirstName: "Ada", LastName: "Lovelace"},
		Photo:    []byte("valid jpeg bytes"),
	}
}

func mintRequest() MintRequest {
	return MintRequest{
		Wallet:   "0xAbCd000000000000000000000000000000001234",
		Identity: Identity{FirstName: "Ada", LastName: "Lovelace", Alias: "The Enchantress"},
		Photo:    []byte("valid jpeg bytes"),
	}
}

func TestCreatePrintCard(t *testing.T) {
	svc, st := newTestService(t, nil, nil, nil)
	ctx := context.Background()

	record, err := svc.CreatePrintCard(ctx, printRequest())
	require.NoError(t, err)

	require.Regexp(t, regexp.MustCompile(`^[0-9]{7,9}$`), record.CardId)
	require.Equal(t, "", record.Wallet)
	require.Equal(t, "Ada Lovelace", record.FullName)
	require.Equal(t, "Journalist", record.Role)
	require.False(t, record.Printed)
	require.Nil(t, record.TxHash)
	require.Nil(t, record.TokenId)

	issued, err := time.Parse("2006-01-02", record.IssueDate)
	require.NoError(t, err)
	require.Equal(t, issued.AddDate(1, 0, 0).Format("2006-01-02"), record.ExpirationDate)

	stored, err := st.Get(ctx, record.CardId)
	require.NoError(t, err)
	require.Equal(t, record.CardId, stored.CardId)
	require.Equal(t, record.FullName, stored.FullName)
	require.Equal(t, record.ImageUrl, stored.ImageUrl)
	require.Equal(t, record.ExpirationDate, stored.ExpirationDate)
}

func TestCreatePrintCardValidation(t *testing.T) {
	svc, st := newTestService(t, nil, nil, nil)
	ctx := context.Background()

	req := printRequest()
	req.Photo = nil
	_, err := svc.CreatePrintCard(ctx, req)
	require.ErrorIs(t, err, ErrMissingFields)

	req = printRequest()
	req.LastName = "   "
	_, err = svc.CreatePrintCard(ctx, req)
	require.ErrorIs(t, err, ErrMissingFields)

	cards, err := st.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, cards, "validation failure must not create partial state")
}

func TestMintCardFullChain(t *testing.T) {
	ledger := &fakeLedger{}
	events := &fakeEvents{}
	svc, st := newTestService(t, &fakePublisher{}, ledger, events)
	ctx := context.Background()

	result, err := svc.MintCard(ctx, mintRequest())
	require.NoError(t, err)

	require.Equal(t, "0xAbCd000000000000000000000000000000001234", result.Record.Wallet,
		"wallet case must be preserved")
	require.Regexp(t, regexp.MustCompile(`^KAP-[0-9a-z]+$`), result.Record.CardId)
	require.Equal(t, "PRESS", result.Record.Role)

	require.NotNil(t, result.IPFSImage)
	require.NotNil(t, result.IPFSPdf)
	require.NotNil(t, result.IPFSMetadata)
	require.Equal(t, "ipfs://bafy-metadata", result.TokenURI,
		"canonical reference switches to the metadata cid")

	require.NotNil(t, result.TxHash)
	require.Equal(t, "0xabc123", *result.TxHash)
	require.Equal(t, result.Record.Wallet, ledger.mintedOwner)
	require.Equal(t, "ipfs://bafy-metadata", ledger.mintedURI)

	stored, err := st.Get(ctx, result.Record.CardId)
	require.NoError(t, err)
	require.NotNil(t, stored.TxHash)
	require.Equal(t, []string{result.Record.CardId}, events.issued)
}

func TestMintCardFallsBackWhenPublishFails(t *testing.T) {
	ledger := &fakeLedger{}
	svc, _ := newTestService(t, &fakePublisher{failPdf: true}, ledger, nil)

	result, err := svc.MintCard(context.Background(), mintRequest())
	require.NoError(t, err)

	require.Nil(t, result.IPFSPdf)
	require.Nil(t, result.IPFSMetadata, "metadata is only pinned when both artifacts pinned")
	require.Equal(t, result.Record.PdfUrl, result.TokenURI,
		"token uri falls back to the plain document url")
	require.Equal(t, result.Record.PdfUrl, ledger.mintedURI)
}

func TestMintCardToleratesLedgerFailure(t *testing.T) {
	ledger := &fakeLedger{mintErr: errors.New("rpc down")}
	svc, st := newTestService(t, nil, ledger, nil)
	ctx := context.Background()

	result, err := svc.MintCard(ctx, mintRequest())
	require.NoError(t, err, "mint failure must not abort issuance")
	require.Nil(t, result.TxHash)

	stored, err := st.Get(ctx, result.Record.CardId)
	require.NoError(t, err)
	require.Nil(t, stored.TxHash)
}

func TestMintCardRequiresWallet(t *testing.T) {
	svc, _ := newTestService(t, nil, nil, nil)

	req := mintRequest()
	req.Wallet = ""
	_, err := svc.MintCard(context.Background(), req)
	require.ErrorIs(t, err, ErrMissingFields)
}

func TestPatchCardRevokeUsesStoredTokenId(t *testing.T) {
	ledger := &fakeLedger{}
	events := &fakeEvents{}
	svc, _ := newTestService(t, nil, ledger, events)
	ctx := context.Background()

	record, err := svc.CreatePrintCard(ctx, printRequest())
	require.NoError(t, err)

	tokenId := int64(42)
	_, err = svc.PatchCard(ctx, record.CardId, models.CardPatch{TokenId: &tokenId})
	require.NoError(t, err)

	revoked := true
	updated, err := svc.PatchCard(ctx, record.CardId, models.CardPatch{Revoked: &revoked})
	require.NoError(t, err)

	require.True(t, updated.Revoked)
	require.Equal(t, []int64{42}, ledger.revokedTokens,
		"revoke must reach the ledger with the stored token id")
	require.Equal(t, []string{record.CardId}, events.revoked)
}

func TestPatchCardRevokeSurvivesLedgerFailure(t *testing.T) {
	ledger := &fakeLedger{revokeErr: errors.New("rpc down")}
	svc, st := newTestService(t, nil, ledger, nil)
	ctx := context.Background()

	record, err := svc.CreatePrintCard(ctx, printRequest())
	require.NoError(t, err)

	tokenId := int64(7)
	revoked := true
	updated, err := svc.PatchCard(ctx, record.CardId,
		models.CardPatch{TokenId: &tokenId, Revoked: &revoked})
	require.NoError(t, err)
	require.True(t, updated.Revoked, "local revocation advances even when the chain call fails")

	stored, err := st.Get(ctx, record.CardId)
	require.NoError(t, err)
	require.True(t, stored.Revoked)
}

func TestPatchCardUnknownId(t *testing.T) {
	svc, _ := newTestService(t, nil, nil, nil)

	revoked := true
	_, err := svc.PatchCard(context.Background(), "4040404", models.CardPatch{Revoked: &revoked})
	require.ErrorIs(t, err, store.ErrNotFound)
}
