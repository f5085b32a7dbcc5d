package ocr

import (
	"context"
	"net/http"
	"sort"

	"golang.org/x/time/rate"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
)

// PlateRecognizer calls the Plate Recognizer snapshot API. Calls are rate
// limited because the cloud plans meter requests per second.
type PlateRecognizer struct {
	baseURL string
	token   string
	regions []string
	http    *httpclient.Client
	limiter *rate.Limiter
}

type plateRecognizerResponse struct {
	Results []struct {
		Plate string  `json:"plate"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func (p *PlateRecognizer) Name() string { return BackendPlateRecognizer }

func (p *PlateRecognizer) Recognize(ctx context.Context, image []byte) (*Result, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, errors.New(err).
				Component("ocr").
				Category(errors.CategoryLimit).
				Context("backend", p.Name()).
				Context("operation", "rate_limiter_wait").
				Build()
		}
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.token)
	var fields map[string][]string
	if len(p.regions) > 0 {
		fields = map[string][]string{"regions": p.regions}
	}

	var resp plateRecognizerResponse
	err := postMultipart(ctx, p.http, p.Name(), p.baseURL+"/v1/plate-reader/", headers,
		formFile{field: "upload", filename: "snapshot.png", data: image}, fields, &resp)
	if err != nil {
		return nil, err
	}

	results := resp.Results[:0:0]
	for _, r := range resp.Results {
		if r.Plate = normalizeText(r.Plate); r.Plate != "" {
			results = append(results, r)
		}
	}
	if len(results) == 0 {
		return nil, noText(p.Name())
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	candidates := make([]string, len(results))
	for i, r := range results {
		candidates[i] = r.Plate
	}
	return &Result{
		Text:       results[0].Plate,
		Score:      floatPtr(results[0].Score),
		Candidates: candidates,
	}, nil
}
