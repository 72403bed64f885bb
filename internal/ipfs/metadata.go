package ipfs

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Attribute is one display trait on the token metadata document.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the token description document pinned alongside the artifacts.
type Metadata struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Image        string      `json:"image"`
	AnimationURL string      `json:"animation_url"`
	ExternalURL  string      `json:"external_url"`
	Attributes   []Attribute `json:"attributes"`
}

// MetadataInput collects the identity fields that show up on the document.
type MetadataInput struct {
	FullName       string
	Role           string
	CardId         string
	IssueDate      string
	ExpirationDate string
	VerifyURL      string
}

// BuildMetadata assembles the token document from the pinned image and pdf.
func BuildMetadata(in MetadataInput, image, pdf *PinResult) Metadata {
	return Metadata{
		Name:         fmt.Sprintf("Kaprika Press ID – %s", in.FullName),
		Description:  "Official Kaprika Press ID card.",
		Image:        image.URI(),
		AnimationURL: pdf.URI(),
		ExternalURL:  in.VerifyURL,
		Attributes: []Attribute{
			{TraitType: "Card ID", Value: in.CardId},
			{TraitType: "Role", Value: in.Role},
			{TraitType: "Issued", Value: in.IssueDate},
			{TraitType: "Expires", Value: in.ExpirationDate},
		},
	}
}

// PinMetadata serializes and pins the metadata document. Nil on failure,
// like Pin.
func (p *Publisher) PinMetadata(ctx context.Context, md Metadata) *PinResult {
	raw, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		log.Errorf("could not marshal token metadata: %s", err)
		return nil
	}
	return p.Pin(ctx, raw, "application/json", "metadata.json")
}
