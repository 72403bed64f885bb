package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultGatewayHost = "storacha.link"

// PinResult is the location of one pinned artifact.
type PinResult struct {
	CID        string `json:"cid"`
	GatewayURL string `json:"gatewayUrl"`
}

// URI is the ipfs scheme reference for the pinned content.
func (r *PinResult) URI() string {
	return "ipfs://" + r.CID
}

// Publisher uploads artifacts to a content-addressed network through a
// pinning service. Pin never returns an error: any failure is logged and
// reported as nil so issuance can fall back to local storage.
type Publisher struct {
	endpoint    string
	token       string
	gatewayHost string
	client      *http.Client
}

func NewPublisher(endpoint, token, gatewayHost string) *Publisher {
	if gatewayHost == "" {
		gatewayHost = defaultGatewayHost
	}
	return &Publisher{
		endpoint:    endpoint,
		token:       token,
		gatewayHost: gatewayHost,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Pin uploads raw bytes and returns the content id plus a gateway mirror,
// or nil when the upload failed for any reason.
func (p *Publisher) Pin(ctx context.Context, data []byte, mimeType, name string) *PinResult {
	result, err := p.pin(ctx, data, mimeType, name)
	if err != nil {
		log.Errorf("ipfs upload failed for %s: %s", name, err)
		return nil
	}
	return result
}

func (p *Publisher) pin(ctx context.Context, data []byte, mimeType, name string) (*PinResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("could not create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("could not write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("could not finish form body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("could not build pin request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pin service returned %d: %s", resp.StatusCode, raw)
	}

	var parsed struct {
		CID string `json:"cid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("could not decode pin response: %w", err)
	}
	if parsed.CID == "" {
		return nil, fmt.Errorf("pin response carried no cid")
	}

	return &PinResult{
		CID:        parsed.CID,
		GatewayURL: fmt.Sprintf("https://%s.ipfs.%s", parsed.CID, p.gatewayHost),
	}, nil
}
