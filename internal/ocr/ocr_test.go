package ocr

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/errors"
	"github.com/ocrwatch/frigate-ocr/internal/httpclient"
)

const testOCRURL = "http://ocr.test:8000"

var testPNG = []byte("\x89PNG\r\n\x1a\nfake")

func newMockRecognizer(t *testing.T, settings conf.OCRSettings) (Recognizer, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Transport: transport})
	if settings.URL == "" {
		settings.URL = testOCRURL
	}
	r, err := New(&settings, client)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r, transport
}

// uploadedFile asserts the multipart field carries the snapshot.
func uploadedFile(t *testing.T, req *http.Request, field string) {
	t.Helper()
	require.NoError(t, req.ParseMultipartForm(1<<20))
	f, _, err := req.FormFile(field)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, testPNG, data)
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend string
		token   string
		want    string
	}{
		{"", "", BackendEasyOCR},
		{"easyocr", "", BackendEasyOCR},
		{"CodeProject", "", BackendCodeProject},
		{"plate_recognizer", "secret", BackendPlateRecognizer},
	}
	for _, tt := range tests {
		r, err := New(&conf.OCRSettings{Backend: tt.backend, URL: testOCRURL, Token: tt.token}, nil)
		require.NoError(t, err, tt.backend)
		assert.Equal(t, tt.want, r.Name())
	}
}

func TestNewDisabled(t *testing.T) {
	t.Parallel()

	r, err := New(&conf.OCRSettings{Backend: BackendNone, URL: testOCRURL}, nil)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = New(&conf.OCRSettings{Backend: BackendEasyOCR}, nil)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := New(&conf.OCRSettings{Backend: "tesseract", URL: testOCRURL}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = New(&conf.OCRSettings{Backend: BackendPlateRecognizer, URL: testOCRURL}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEasyOCRRecognize(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{Backend: BackendEasyOCR})

	transport.RegisterResponder(http.MethodPost, testOCRURL+"/ocr",
		func(req *http.Request) (*http.Response, error) {
			uploadedFile(t, req, "image")
			return httpmock.NewStringResponse(http.StatusOK, `{"texts":["abc", " 12 34", ""],"score":0.72}`), nil
		})

	res, err := r.Recognize(t.Context(), testPNG)
	require.NoError(t, err)
	assert.Equal(t, "abc1234", res.Text)
	assert.Equal(t, []string{"abc", "1234"}, res.Candidates)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 0.72, *res.Score, 1e-9)
}

func TestEasyOCRWithoutScore(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{Backend: BackendEasyOCR})

	transport.RegisterResponder(http.MethodPost, testOCRURL+"/ocr",
		httpmock.NewStringResponder(http.StatusOK, `{"texts":["XYZ987"]}`))

	res, err := r.Recognize(t.Context(), testPNG)
	require.NoError(t, err)
	assert.Equal(t, "XYZ987", res.Text)
	assert.Nil(t, res.Score)
}

func TestEasyOCRNoText(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{Backend: BackendEasyOCR})

	transport.RegisterResponder(http.MethodPost, testOCRURL+"/ocr",
		httpmock.NewStringResponder(http.StatusOK, `{"texts":[]}`))

	_, err := r.Recognize(t.Context(), testPNG)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestBackendHTTPError(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{Backend: BackendEasyOCR})

	transport.RegisterResponder(http.MethodPost, testOCRURL+"/ocr",
		httpmock.NewStringResponder(http.StatusInternalServerError, "model not loaded"))

	_, err := r.Recognize(t.Context(), testPNG)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryOCR))
	assert.NotErrorIs(t, err, ErrNoText)
}

func TestCodeProjectRecognize(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{Backend: BackendCodeProject})

	transport.RegisterResponder(http.MethodPost, testOCRURL+"/v1/vision/alpr",
		func(req *http.Request) (*http.Response, error) {
			uploadedFile(t, req, "upload")
			return httpmock.NewStringResponse(http.StatusOK, `{"success":true,"predictions":[
				{"plate":"ABC1Z34","confidence":0.61},
				{"plate":"ABC 1234","confidence":0.93}
			]}`), nil
		})

	res, err := r.Recognize(t.Context(), testPNG)
	require.NoError(t, err)
	assert.Equal(t, "ABC1234", res.Text)
	assert.Equal(t, []string{"ABC1234", "ABC1Z34"}, res.Candidates)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 0.93, *res.Score, 1e-9)
}

func TestCodeProjectUnsuccessful(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{Backend: BackendCodeProject})

	transport.RegisterResponder(http.MethodPost, testOCRURL+"/v1/vision/alpr",
		httpmock.NewStringResponder(http.StatusOK, `{"success":false,"error":"module not running"}`))

	_, err := r.Recognize(t.Context(), testPNG)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module not running")
}

func TestPlateRecognizerRecognize(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{
		Backend: BackendPlateRecognizer,
		Token:   "secret",
		Regions: []string{"us-ca", "mx"},
	})

	transport.RegisterResponder(http.MethodPost, testOCRURL+"/v1/plate-reader/",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Token secret", req.Header.Get("Authorization"))
			uploadedFile(t, req, "upload")
			assert.Equal(t, []string{"us-ca", "mx"}, req.MultipartForm.Value["regions"])
			return httpmock.NewStringResponse(http.StatusCreated, `{"results":[{"plate":"7abc123","score":0.904}]}`), nil
		})

	res, err := r.Recognize(t.Context(), testPNG)
	require.NoError(t, err)
	assert.Equal(t, "7abc123", res.Text)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 0.904, *res.Score, 1e-9)
}

func TestPlateRecognizerRateLimitHonoursContext(t *testing.T) {
	t.Parallel()
	r, transport := newMockRecognizer(t, conf.OCRSettings{
		Backend:   BackendPlateRecognizer,
		Token:     "secret",
		RateLimit: 0.001,
	})
	transport.RegisterResponder(http.MethodPost, testOCRURL+"/v1/plate-reader/",
		httpmock.NewStringResponder(http.StatusOK, `{"results":[{"plate":"A1","score":0.9}]}`))

	_, err := r.Recognize(t.Context(), testPNG)
	require.NoError(t, err)

	// The next token is ~1000s away, so Wait fails immediately on the deadline.
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = r.Recognize(ctx, testPNG)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ABC123", normalizeText(" AB C\t12\n3 "))
	assert.Empty(t, normalizeText("  "))
}
