package docai

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"bytes"
	"os"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// ProcessorConfig names the Document AI processor a Recognizer built by
// NewRecognizer talks to, grounded directly on the teacher's
// pkg/gdocai.Config (referenced throughout pkg/gdocai/client.go and
// gdocai.go but never actually declared there — a latent gap in the
// teacher code, the same class of defect as internal/config's
// documented Strict field gap). Declared here for real since Client
// needs a concrete type to build a Recognizer from.
type ProcessorConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// NewRecognizer builds a Client.Recognizer function backed by a real
// Document AI processor, grounded on the teacher's
// pkg/gdocai/client.go:ProcessDocument almost verbatim (endpoint
// construction, credentials-from-environment client option, processor
// resource name, SkipHumanReview request). GenerateOCR's caller supplies
// an image.Image (per the engine.OcrEngine contract) rather than raw PDF
// bytes, so this re-encodes it as PNG before sending it as the raw
// document content Document AI expects.
func NewRecognizer(ctx context.Context, cfg ProcessorConfig) (func(context.Context, image.Image) (*documentaipb.Document, error), error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	client, err := documentai.NewDocumentProcessorClient(
		ctx,
		option.WithEndpoint(endpoint),
		option.WithCredentialsFile(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	)
	if err != nil {
		return nil, fmt.Errorf("docai: create document processor client: %w", err)
	}

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, cfg.ProcessorID)

	return func(ctx context.Context, img image.Image) (*documentaipb.Document, error) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("docai: encode page image: %w", err)
		}
		req := &documentaipb.ProcessRequest{
			Name: name,
			Source: &documentaipb.ProcessRequest_RawDocument{
				RawDocument: &documentaipb.RawDocument{
					Content:  buf.Bytes(),
					MimeType: "image/png",
				},
			},
			SkipHumanReview: true,
		}
		resp, err := client.ProcessDocument(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("docai: process document: %w", err)
		}
		return resp.Document, nil
	}, nil
}
