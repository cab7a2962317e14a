package handler

import (
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docflow/internal/http/middleware"
	"docflow/internal/model"
	"docflow/internal/service"
)

const defaultContentType = "application/octet-stream"

type uploadResponse struct {
	Message  string          `json:"message"`
	Document *model.Document `json:"document"`
}

type batchItem struct {
	FileName string          `json:"file_name"`
	Document *model.Document `json:"document,omitempty"`
	Error    *errorEnvelope  `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchItem `json:"results"`
}

type urlResponse struct {
	URL    string `json:"url"`
	Signed bool   `json:"signed"`
}

// UploadDocument ingests one multipart file (field "file") for the caller.
//
// @Summary  Upload a document
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    file formData file true "Document to ingest"
// @Success  202 {object} uploadResponse
// @Failure  400 {object} errorPayload
// @Failure  413 {object} errorPayload
// @Failure  502 {object} errorPayload
// @Router   /api/documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		doc, err := svc.Ingest(c.UserContext(), middleware.OwnerID(c), toUpload(fh, f))
		if err != nil {
			logServerError(c, err)
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(uploadResponse{
			Message:  "document accepted for processing",
			Document: doc,
		})
	}
}

// UploadDocuments ingests every multipart file under "files" independently.
// Results keep the order of the form parts.
//
// @Summary  Upload several documents
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    files formData file true "Documents to ingest"
// @Success  207 {object} batchResponse
// @Failure  400 {object} errorPayload
// @Router   /api/documents/batch [post]
func UploadDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil || len(form.File["files"]) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILES_REQUIRED", "at least one file is required")
		}

		headers := form.File["files"]
		uploads := make([]service.Upload, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			defer f.Close()
			uploads = append(uploads, toUpload(fh, f))
		}

		results := svc.IngestMany(c.UserContext(), middleware.OwnerID(c), uploads)

		res := batchResponse{Results: make([]batchItem, 0, len(results))}
		for _, r := range results {
			item := batchItem{FileName: r.FileName, Document: r.Document}
			if r.Err != nil {
				logServerError(c, r.Err)
				_, code, msg := errorBody(r.Err)
				item.Error = &errorEnvelope{Code: code, Message: msg}
			}
			res.Results = append(res.Results, item)
		}
		return c.Status(fiber.StatusMultiStatus).JSON(res)
	}
}

// ListDocuments lists the caller's documents.
//
// @Summary  List documents
// @Tags     documents
// @Produce  json
// @Param    status query string false "pending, processing, completed or failed"
// @Param    q      query string false "Case-insensitive file name substring"
// @Param    sort   query string false "uploaded_desc (default), uploaded_asc, name_asc or name_desc"
// @Param    limit  query int    false "Page size, 0 for all"
// @Param    offset query int    false "Rows to skip"
// @Success  200 {object} service.DocumentListResult
// @Failure  400 {object} errorPayload
// @Router   /api/documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), service.ListOptions{
			OwnerID: middleware.OwnerID(c),
			Status:  c.Query("status"),
			Query:   c.Query("q"),
			Sort:    c.Query("sort"),
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			logServerError(c, err)
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetDocument returns one of the caller's documents.
//
// @Summary  Get a document
// @Tags     documents
// @Produce  json
// @Param    id path string true "Document ID"
// @Success  200 {object} model.Document
// @Failure  404 {object} errorPayload
// @Router   /api/documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := ownedDocument(c, svc)
		if err != nil {
			logServerError(c, err)
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes one of the caller's documents and its blob.
//
// @Summary  Delete a document
// @Tags     documents
// @Param    id path string true "Document ID"
// @Success  204
// @Failure  404 {object} errorPayload
// @Router   /api/documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := ownedDocument(c, svc)
		if err == nil {
			err = svc.Delete(c.UserContext(), doc.ID)
		}
		if err != nil {
			logServerError(c, err)
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetDocumentURL returns a public or, with signed=true, a presigned download URL.
//
// @Summary  Get a document URL
// @Tags     documents
// @Produce  json
// @Param    id     path  string true  "Document ID"
// @Param    signed query bool   false "Return a time-limited presigned URL"
// @Success  200 {object} urlResponse
// @Failure  404 {object} errorPayload
// @Router   /api/documents/{id}/url [get]
func GetDocumentURL(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		signed := c.QueryBool("signed", false)
		doc, err := ownedDocument(c, svc)
		var u string
		if err == nil {
			u, err = svc.PublicURL(c.UserContext(), doc.ID, signed)
		}
		if err != nil {
			logServerError(c, err)
			return writeServiceError(c, err)
		}
		return c.JSON(urlResponse{URL: u, Signed: signed})
	}
}

// DownloadDocument streams the blob of one of the caller's documents.
//
// @Summary  Download a document
// @Tags     documents
// @Produce  octet-stream
// @Param    id path string true "Document ID"
// @Success  200 {file} binary
// @Failure  404 {object} errorPayload
// @Router   /api/documents/{id}/content [get]
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := ownedDocument(c, svc)
		var rc io.ReadCloser
		if err == nil {
			rc, doc, err = svc.Open(c.UserContext(), doc.ID)
		}
		if err != nil {
			logServerError(c, err)
			return writeServiceError(c, err)
		}

		c.Attachment(doc.FileName)
		if doc.ContentType != "" {
			c.Set(fiber.HeaderContentType, doc.ContentType)
		}
		// fasthttp closes rc once the body has been written.
		return c.SendStream(rc, int(doc.Size))
	}
}

// ownedDocument loads :id and hides documents owned by someone else behind ErrNotFound.
func ownedDocument(c *fiber.Ctx, svc service.DocumentService) (*model.Document, error) {
	doc, err := svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != middleware.OwnerID(c) {
		return nil, service.ErrNotFound
	}
	return doc, nil
}

func toUpload(fh *multipart.FileHeader, f multipart.File) service.Upload {
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = defaultContentType
	}
	return service.Upload{
		Content:     f,
		FileName:    fh.Filename,
		ContentType: ct,
		Size:        fh.Size,
	}
}

// logServerError records failures that the response envelope hides from the caller.
func logServerError(c *fiber.Ctx, err error) {
	if status, _, _ := errorBody(err); status < fiber.StatusInternalServerError {
		return
	}
	slog.Default().ErrorContext(c.UserContext(), "request_failed",
		"request_id", requestIDFromCtx(c),
		"path", c.Path(),
		"error", err.Error(),
	)
}
