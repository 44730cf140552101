package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	systemInstruction = "You are a clinical prompt generator for a downstream CT scan image generator. " +
		"You receive clinical context, structured EHR data, unstructured EHR notes, " +
		"and CT brain images. Your task is ONLY to craft a single, rich, well-structured " +
		"prompt that is an extremely detailed clinical explanation of the CT scans and EHR data " +
		"with patient and treatment context.\n\n" +
		"Do NOT give diagnoses or findings directly. Just write the best possible prompt."
	closingInstruction = "\n\nNow output a SINGLE prompt string of about 4-5 sentences, ready to be fed into a brain CT generation LLM. " +
		"Include: extremely specific detailed clinical explanation of the CT scans, patient demographics, " +
		"key history, relevant labs/meds, and what the model should focus on."
)

// InlinePart is base64 encoded media sent alongside text parts.
type InlinePart struct {
	MimeType string
	Data     string
}

// TextRequest carries the assembled clinical inputs for a prompt generation.
type TextRequest struct {
	Context string
	EHRText string
	Images  []InlinePart
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

// GenerateText asks the model for a single clinical image-generation prompt.
// A response without a first candidate part yields an empty string.
func (c *Client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if !c.HasCredentials() {
		return "", c.missingCredential()
	}

	payload := generateContentRequest{
		Contents: []content{{Parts: buildParts(req)}},
		GenerationConfig: generationConfig{
			Temperature:     0.2,
			TopK:            40,
			TopP:            0.95,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	var response generateContentResponse
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &response); err != nil {
		return "", err
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("candidates", len(response.Candidates)).
		Int("images", len(req.Images)).
		Msg("genai: text generated")

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text), nil
}

func buildParts(req TextRequest) []part {
	parts := []part{
		{Text: systemInstruction},
		{Text: "\n\nClinical / patient context:\n" + req.Context},
	}
	if req.EHRText != "" {
		parts = append(parts, part{Text: "\n\nEHR documents (structured & narrative excerpts):\n" + req.EHRText})
	}
	if len(req.Images) > 0 {
		parts = append(parts, part{Text: "\n\nAttached CT brain images (inline): use their visual information."})
		for _, img := range req.Images {
			parts = append(parts, part{InlineData: &inlineData{MimeType: img.MimeType, Data: img.Data}})
		}
	}
	return append(parts, part{Text: closingInstruction})
}
