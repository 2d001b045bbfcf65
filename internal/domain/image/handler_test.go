package image

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/retinacare/retinacare/internal/platform/auth"
)

func multipartUpload(t *testing.T, patientID, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("patient_id", patientID)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="scan.png"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("pixels"))
	w.Close()
	return &buf, w.FormDataContentType()
}

func uploadRequest(e *echo.Echo, body *bytes.Buffer, contentType string, userID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/retinal-images", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	req = req.WithContext(auth.WithUser(req.Context(), userID, auth.RoleDoctor))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_UploadImage(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	body, ct := multipartUpload(t, f.patient.String(), "image/png")
	c, rec := uploadRequest(e, body, ct, f.doctorID)
	if err := h.UploadImage(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data RetinalImage `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Data.PatientID != f.patient {
		t.Errorf("wrong patient on record: %s", resp.Data.PatientID)
	}
}

func TestHandler_UploadImage_BadContentType(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	body, ct := multipartUpload(t, f.patient.String(), "application/pdf")
	c, _ := uploadRequest(e, body, ct, f.doctorID)
	err := h.UploadImage(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_UploadImage_MissingPatient(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	body, ct := multipartUpload(t, "", "image/png")
	c, _ := uploadRequest(e, body, ct, f.doctorID)
	err := h.UploadImage(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_DeleteImage_NotFound(t *testing.T) {
	f := newFixture()
	h, e := NewHandler(f.svc), echo.New()

	id := uuid.New().String()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/retinal-images/"+id, nil)
	req = req.WithContext(auth.WithUser(req.Context(), f.doctorID, auth.RoleDoctor))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(id)

	err := h.DeleteImage(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
