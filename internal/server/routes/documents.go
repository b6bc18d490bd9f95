package routes

import (
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/internal/queue"
	"github.com/OFFIS-RIT/kiwi-insure/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi-insure/internal/util"

	"github.com/labstack/echo/v4"
)

type documentBody struct {
	DocumentID string `json:"document_id" form:"document_id"`
	Text       string `json:"text" form:"text" validate:"required"`
}

type queueDocumentBody struct {
	DocumentID string `json:"document_id" form:"document_id"`
	Text       string `json:"text" form:"text"`
}

type processDocumentResponse struct {
	Message       string   `json:"message"`
	DocumentID    string   `json:"document_id,omitempty"`
	Chunks        int      `json:"chunks"`
	Entities      int      `json:"entities"`
	Relationships int      `json:"relationships"`
	Dropped       int      `json:"dropped_relationships"`
	Skipped       []string `json:"skipped_units,omitempty"`
}

func documentID(id string) (string, error) {
	if id = strings.TrimSpace(id); id != "" {
		return id, nil
	}
	return util.NewID("doc")
}

// PostDocumentHandler runs a document through the pipeline synchronously.
func PostDocumentHandler(c echo.Context) error {
	data := new(documentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body", Error: err.Error()})
	}
	docID, err := documentID(data.DocumentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}

	app := c.(*middleware.AppContext).App
	res, err := app.Graph.ProcessDocument(c.Request().Context(), docID, data.Text)
	if err != nil {
		status, body := failure("Processing document", err)
		return c.JSON(status, body)
	}

	resp := processDocumentResponse{
		Message:    "Document processed",
		DocumentID: docID,
		Chunks:     res.Chunks,
		Entities:   len(res.Entities),
	}
	if res.Write != nil {
		resp.Entities = res.Write.Entities
		resp.Relationships = res.Write.Relationships
		resp.Dropped = len(res.Write.Dropped)
	}
	for _, s := range res.Skipped {
		resp.Skipped = append(resp.Skipped, s.UnitID)
	}
	return c.JSON(http.StatusOK, resp)
}

type queueDocumentResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id,omitempty"`
	ObjectKey  string `json:"object_key,omitempty"`
}

// PostDocumentQueueHandler enqueues a document for the worker. A multipart
// "file" is uploaded to the bucket first and referenced by its key.
func PostDocumentQueueHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, queueDocumentResponse{Message: "Queue not configured"})
	}

	data := new(queueDocumentBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queueDocumentResponse{Message: "Invalid request body"})
	}
	docID, err := documentID(data.DocumentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, queueDocumentResponse{Message: "Internal server error"})
	}

	ctx := c.Request().Context()
	msg := queue.IngestMsg{DocumentID: docID, Text: data.Text}

	if file, err := c.FormFile("file"); err == nil {
		if app.Bucket == nil {
			return c.JSON(http.StatusServiceUnavailable, queueDocumentResponse{Message: "File storage not configured"})
		}
		src, err := file.Open()
		if err != nil {
			return c.JSON(http.StatusBadRequest, queueDocumentResponse{Message: "Invalid file"})
		}
		defer src.Close()
		key, err := app.Bucket.PutDocument(ctx, "ingest", docID, file.Filename, src)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, queueDocumentResponse{Message: "Failed to store file"})
		}
		msg.ObjectKey = key
	} else if strings.TrimSpace(data.Text) == "" {
		return c.JSON(http.StatusBadRequest, queueDocumentResponse{Message: "Either text or file is required"})
	}

	if err := queue.PublishIngest(ctx, app.Queue, msg); err != nil {
		return c.JSON(http.StatusInternalServerError, queueDocumentResponse{Message: "Failed to enqueue document"})
	}
	return c.JSON(http.StatusAccepted, queueDocumentResponse{
		Message:    "Document queued",
		DocumentID: docID,
		ObjectKey:  msg.ObjectKey,
	})
}
