package server

import (
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/detection"
	"github.com/teslashibe/go-ppewatch/pkg/frame"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

// Client-facing messages for rejected uploads.
const (
	msgNotImage  = "Uploaded file is not an image."
	msgUndecoded = "Could not decode image. Please upload a valid image file."
)

// AnalyzeResponse is the /analyze body.
type AnalyzeResponse struct {
	RequestID       string                `json:"request_id"`
	DetectedObjects []detection.Detection `json:"detected_objects"`
	RecognizedFaces []detection.FaceMatch `json:"recognized_faces,omitempty"`
	Result          string                `json:"result"`
	ObjectError     string                `json:"object_error,omitempty"`
	FaceError       string                `json:"face_error,omitempty"`
	Error           string                `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	reqID := uuid.NewString()
	reject := func(msg string) error {
		return c.Status(fiber.StatusBadRequest).JSON(AnalyzeResponse{
			RequestID: reqID,
			Result:    "no",
			Error:     msg,
		})
	}

	fh, err := c.FormFile("file")
	if err != nil || !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return reject(msgNotImage)
	}

	raw, err := readUpload(fh)
	if err != nil {
		return reject(msgUndecoded)
	}
	img, err := s.decode(raw)
	if err != nil {
		log.Debug("upload rejected", "request_id", reqID, "error", err)
		return reject(msgUndecoded)
	}

	res := s.adapter.Evaluate(c.UserContext(), img)
	s.analyses.Add(1)

	resp := AnalyzeResponse{
		RequestID:       reqID,
		DetectedObjects: res.Safety,
		Result:          "no",
	}
	if resp.DetectedObjects == nil {
		resp.DetectedObjects = []detection.Detection{}
	}
	if res.Safe() {
		resp.Result = "yes"
		s.safe.Add(1)
	}
	if s.adapter.FacesEnabled() {
		resp.RecognizedFaces = res.Faces
	}
	if res.ObjectErr != nil {
		resp.ObjectError = res.ObjectErr.Error()
	}
	if res.FaceErr != nil {
		resp.FaceError = res.FaceErr.Error()
	}

	log.Info("analyzed upload",
		"request_id", reqID,
		"file", fh.Filename,
		"safety", len(res.Safety),
		"faces", len(res.Faces),
		"result", resp.Result)
	return c.JSON(resp)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, frame.ErrEmpty
	}
	return data, nil
}

func (s *Server) handleCreateGallery(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.provider.CreateGallery(c.UserContext(), id); err != nil {
		return providerFailure(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"gallery": id, "status": "ready"})
}

func (s *Server) handleDeleteGallery(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.provider.DeleteGallery(c.UserContext(), id); err != nil {
		return providerFailure(c, err)
	}
	return c.JSON(fiber.Map{"gallery": id, "status": "deleted"})
}

func (s *Server) handleIndexFace(c *fiber.Ctx) error {
	id := c.Params("id")

	fh, err := c.FormFile("file")
	if err != nil || !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgNotImage})
	}
	raw, err := readUpload(fh)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgUndecoded})
	}
	img, err := s.decode(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msgUndecoded})
	}

	externalID := c.FormValue("external_id")
	if externalID == "" {
		externalID = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}

	faces, err := s.provider.IndexFace(c.UserContext(), id, img, externalID)
	if err != nil {
		return providerFailure(c, err)
	}
	return c.JSON(fiber.Map{"gallery": id, "faces": faces})
}

type indexObjectRequest struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	ExternalID string `json:"external_id"`
}

func (s *Server) handleIndexObject(c *fiber.Ctx) error {
	id := c.Params("id")

	var req indexObjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Bucket == "" || req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bucket and key are required"})
	}

	if s.buckets != nil {
		if err := s.buckets.CheckRegion(c.UserContext(), req.Bucket, s.region); err != nil {
			if errors.Is(err, vision.ErrBucketNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
	}

	ref := vision.ObjectRef{Bucket: req.Bucket, Key: req.Key}
	faces, err := s.provider.IndexFaceFromObject(c.UserContext(), id, ref, req.ExternalID)
	if err != nil {
		return providerFailure(c, err)
	}
	return c.JSON(fiber.Map{"gallery": id, "faces": faces})
}

// providerFailure maps provider errors onto HTTP status codes.
func providerFailure(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadGateway
	switch {
	case errors.Is(err, vision.ErrNotSupported):
		status = fiber.StatusNotImplemented
	case errors.Is(err, vision.ErrGalleryNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, vision.ErrEmptyImage):
		status = fiber.StatusBadRequest
	}
	log.Warn("provider call failed", "path", c.Path(), "status", status, "error", err)
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
