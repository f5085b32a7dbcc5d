package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
)

const maxResponseBytes = 4 << 20

type formFile struct {
	field    string
	filename string
	data     []byte
}

// postMultipart uploads file plus fields and decodes a 2xx JSON answer into out.
func postMultipart(ctx context.Context, client *httpclient.Client, backend, target string, headers http.Header, file formFile, fields map[string][]string, out any) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile(file.field, file.filename)
	if err != nil {
		return backendError(err, backend, "build_request")
	}
	if _, err := part.Write(file.data); err != nil {
		return backendError(err, backend, "build_request")
	}
	for name, values := range fields {
		for _, v := range values {
			if err := w.WriteField(name, v); err != nil {
				return backendError(err, backend, "build_request")
			}
		}
	}
	if err := w.Close(); err != nil {
		return backendError(err, backend, "build_request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
	if err != nil {
		return backendError(err, backend, "build_request")
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(ctx, req)
	if err != nil {
		return errors.New(err).
			Component("ocr").
			Category(errors.CategoryNetwork).
			Context("backend", backend).
			Context("operation", "recognize").
			NetworkContext(target, 0).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("%s returned status %d", backend, resp.StatusCode).
			Component("ocr").
			Category(errors.CategoryOCR).
			Context("backend", backend).
			Context("status_code", resp.StatusCode).
			Context("response", string(snippet)).
			Build()
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return backendError(err, backend, "decode_response")
	}
	return nil
}

func backendError(err error, backend, operation string) error {
	return errors.New(err).
		Component("ocr").
		Category(errors.CategoryOCR).
		Context("backend", backend).
		Context("operation", operation).
		Build()
}

func noText(backend string) error {
	return errors.New(ErrNoText).
		Component("ocr").
		Category(errors.CategoryOCR).
		Priority(errors.PriorityLow).
		Context("backend", backend).
		Build()
}
