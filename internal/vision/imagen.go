package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"furnicolor/internal/imaging"
)

// VertexImagen edits photos through a Vertex AI Imagen capability model.
type VertexImagen struct {
	projectID          string
	location           string
	model              string
	apiKey             string
	serviceAccount     string
	serviceAccountJSON string
}

// VertexImagenConfig describes how to connect to Imagen.
type VertexImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

// NewVertexImagen wires a VertexImagen client.
func NewVertexImagen(cfg VertexImagenConfig) *VertexImagen {
	return &VertexImagen{
		projectID:          strings.TrimSpace(cfg.ProjectID),
		location:           strings.TrimSpace(cfg.Location),
		model:              strings.TrimSpace(cfg.Model),
		apiKey:             strings.TrimSpace(cfg.APIKey),
		serviceAccount:     strings.TrimSpace(cfg.ServiceAccount),
		serviceAccountJSON: strings.TrimSpace(cfg.ServiceAccountJSON),
	}
}

// Name identifies the backend in logs and results.
func (v *VertexImagen) Name() string { return "imagen:" + v.model }

// Edit runs a mask-free Imagen edit and returns the rendered PNG.
func (v *VertexImagen) Edit(ctx context.Context, src imaging.Source, instruction string) (imaging.Source, error) {
	if v == nil {
		return imaging.Source{}, fmt.Errorf("imagen: client not configured")
	}
	if v.projectID == "" || v.location == "" || v.model == "" {
		return imaging.Source{}, fmt.Errorf("imagen: missing project/location/model")
	}
	if strings.TrimSpace(instruction) == "" {
		return imaging.Source{}, fmt.Errorf("imagen: prompt is required")
	}
	if len(src.Data) == 0 {
		return imaging.Source{}, imaging.ErrEmpty
	}

	instance, params, err := imagenRequest(src, instruction)
	if err != nil {
		return imaging.Source{}, err
	}

	client, err := aiplatform.NewPredictionClient(ctx, v.clientOptions()...)
	if err != nil {
		return imaging.Source{}, fmt.Errorf("imagen: prediction client: %w", err)
	}
	defer client.Close()

	resp, err := client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.projectID, v.location, v.model),
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return imaging.Source{}, fmt.Errorf("imagen: predict: %w", err)
	}
	return decodePrediction(resp.GetPredictions())
}

func (v *VertexImagen) clientOptions() []option.ClientOption {
	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", v.location))}
	switch {
	case v.serviceAccountJSON != "":
		options = append(options, option.WithCredentialsJSON([]byte(v.serviceAccountJSON)))
	case v.serviceAccount != "":
		options = append(options, option.WithCredentialsFile(v.serviceAccount))
	case v.apiKey != "":
		options = append(options, option.WithAPIKey(v.apiKey))
	}
	return options
}

func imagenRequest(src imaging.Source, instruction string) (*structpb.Value, *structpb.Value, error) {
	instance, err := structpb.NewValue(map[string]any{
		"prompt": instruction,
		"image": map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(src.Data),
			"mimeType":           src.MIMEType,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("imagen: build instance: %w", err)
	}
	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"editMode":    "inpainting-free-form",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("imagen: build parameters: %w", err)
	}
	return instance, params, nil
}

func decodePrediction(predictions []*structpb.Value) (imaging.Source, error) {
	if len(predictions) == 0 {
		return imaging.Source{}, fmt.Errorf("imagen: empty prediction response")
	}
	fields := predictions[0].GetStructValue().GetFields()
	field := fields["bytesBase64Encoded"]
	if field == nil {
		return imaging.Source{}, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(field.GetStringValue())
	if err != nil {
		return imaging.Source{}, fmt.Errorf("imagen: decode result: %w", err)
	}
	mime := "image/png"
	if m := fields["mimeType"]; m != nil && m.GetStringValue() != "" {
		mime = m.GetStringValue()
	}
	return imaging.Source{Name: "imagen" + extensionFor(mime), MIMEType: mime, Data: data}, nil
}
