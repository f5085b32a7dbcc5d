package ocr

import (
	"context"
	"strings"

	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
)

// EasyOCR calls an EasyOCR or PaddleOCR HTTP wrapper that answers with the
// text lines it read, in reading order.
type EasyOCR struct {
	baseURL string
	http    *httpclient.Client
}

type easyOCRResponse struct {
	Texts []string `json:"texts"`
	Score *float64 `json:"score"`
}

func (e *EasyOCR) Name() string { return BackendEasyOCR }

// Recognize joins all lines into one candidate, since plates are often read
// as two fragments.
func (e *EasyOCR) Recognize(ctx context.Context, image []byte) (*Result, error) {
	var resp easyOCRResponse
	err := postMultipart(ctx, e.http, e.Name(), e.baseURL+"/ocr", nil,
		formFile{field: "image", filename: "snapshot.png", data: image}, nil, &resp)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, t := range resp.Texts {
		if t = normalizeText(t); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return nil, noText(e.Name())
	}

	return &Result{
		Text:       strings.Join(lines, ""),
		Score:      resp.Score,
		Candidates: lines,
	}, nil
}
