package ocr

import (
	"context"
	"sort"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
)

// CodeProject calls the CodeProject.AI ALPR module.
type CodeProject struct {
	baseURL string
	http    *httpclient.Client
}

type codeProjectResponse struct {
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	Predictions []struct {
		Plate      string  `json:"plate"`
		Confidence float64 `json:"confidence"`
	} `json:"predictions"`
}

func (c *CodeProject) Name() string { return BackendCodeProject }

func (c *CodeProject) Recognize(ctx context.Context, image []byte) (*Result, error) {
	var resp codeProjectResponse
	err := postMultipart(ctx, c.http, c.Name(), c.baseURL+"/v1/vision/alpr", nil,
		formFile{field: "upload", filename: "snapshot.png", data: image}, nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, errors.Newf("codeproject alpr failed: %s", resp.Error).
			Component("ocr").
			Category(errors.CategoryOCR).
			Context("backend", c.Name()).
			Build()
	}

	preds := resp.Predictions[:0:0]
	for _, p := range resp.Predictions {
		if p.Plate = normalizeText(p.Plate); p.Plate != "" {
			preds = append(preds, p)
		}
	}
	if len(preds) == 0 {
		return nil, noText(c.Name())
	}
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Confidence > preds[j].Confidence })

	candidates := make([]string, len(preds))
	for i, p := range preds {
		candidates[i] = p.Plate
	}
	return &Result{
		Text:       preds[0].Plate,
		Score:      floatPtr(preds[0].Confidence),
		Candidates: candidates,
	}, nil
}
