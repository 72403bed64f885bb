package ipfs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinReturnsCidAndGatewayURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		require.Equal(t, "card.png", header.Filename)

		json.NewEncoder(w).Encode(map[string]string{"cid": "bafytest123"})
	}))
	defer srv.Close()

	p := NewPublisher(srv.URL, "secret", "storacha.link")
	result := p.Pin(context.Background(), []byte("png bytes"), "image/png", "card.png")

	require.NotNil(t, result)
	require.Equal(t, "bafytest123", result.CID)
	require.Equal(t, "https://bafytest123.ipfs.storacha.link", result.GatewayURL)
	require.Equal(t, "ipfs://bafytest123", result.URI())
}

func TestPinSwallowsServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewPublisher(srv.URL, "secret", "")
	require.Nil(t, p.Pin(context.Background(), []byte("data"), "application/pdf", "card.pdf"))
}

func TestPinSwallowsUnreachableService(t *testing.T) {
	p := NewPublisher("http://127.0.0.1:1", "secret", "")
	require.Nil(t, p.Pin(context.Background(), []byte("data"), "image/png", "card.png"))
}

func TestBuildMetadataShape(t *testing.T) {
	image := &PinResult{CID: "bafyimg"}
	pdf := &PinResult{CID: "bafypdf"}

	md := BuildMetadata(MetadataInput{
		FullName:       "Ada Lovelace",
		Role:           "Journalist",
		CardId:         "1234567",
		IssueDate:      "2026-08-30",
		ExpirationDate: "2027-08-30",
		VerifyURL:      "http://localhost:8080/verify/1234567",
	}, image, pdf)

	require.Equal(t, "Kaprika Press ID – Ada Lovelace", md.Name)
	require.Equal(t, "ipfs://bafyimg", md.Image)
	require.Equal(t, "ipfs://bafypdf", md.AnimationURL)
	require.Equal(t, "http://localhost:8080/verify/1234567", md.ExternalURL)
	require.Len(t, md.Attributes, 4)
	require.Equal(t, Attribute{TraitType: "Card ID", Value: "1234567"}, md.Attributes[0])
	require.Equal(t, Attribute{TraitType: "Expires", Value: "2027-08-30"}, md.Attributes[3])
}
