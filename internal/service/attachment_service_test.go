package service

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"examforge-go/internal/config"
	"examforge-go/pkg/tika"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tikaStub(t *testing.T, status int, body string) *tika.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return tika.NewClient(config.TikaConfig{ServerURL: srv.URL})
}

func TestProcess_ImagePassthrough(t *testing.T) {
	svc := NewAttachmentService(tikaStub(t, http.StatusOK, "unused"))

	got := svc.Process(context.Background(), &TurnFile{
		Name:      "diagram.png",
		MediaType: "image/png",
		Data:      "data:image/png;base64,QUJD",
	})

	// 图片不走 Tika，data URL 前缀被归一化
	assert.Equal(t, "data:image/png;base64,QUJD", got.ImageDataURI)
	assert.Empty(t, got.SystemContext)
	assert.Empty(t, got.TextSuffix)
}

func TestProcess_PDFExtraction(t *testing.T) {
	pdfData := base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake"))

	t.Run("extracted text lands in system context", func(t *testing.T) {
		svc := NewAttachmentService(tikaStub(t, http.StatusOK, "Chapter 1: Processes"))

		got := svc.Process(context.Background(), &TurnFile{
			Name: "notes.pdf", MediaType: "application/pdf", Data: pdfData,
		})

		assert.Contains(t, got.SystemContext, "[USER ATTACHED PDF: notes.pdf]")
		assert.Contains(t, got.SystemContext, "Chapter 1: Processes")
		assert.Contains(t, got.TextSuffix, "notes.pdf")
		assert.Empty(t, got.ImageDataURI)
	})

	t.Run("empty extraction degrades to annotation", func(t *testing.T) {
		svc := NewAttachmentService(tikaStub(t, http.StatusOK, "   \n  "))

		got := svc.Process(context.Background(), &TurnFile{
			Name: "blank.pdf", MediaType: "application/pdf", Data: pdfData,
		})

		assert.Empty(t, got.SystemContext)
		assert.Equal(t, "\n(Attached PDF was empty or unreadable).", got.TextSuffix)
	})

	t.Run("tika failure degrades to annotation", func(t *testing.T) {
		svc := NewAttachmentService(tikaStub(t, http.StatusUnprocessableEntity, "cannot parse"))

		got := svc.Process(context.Background(), &TurnFile{
			Name: "broken.pdf", MediaType: "application/pdf", Data: pdfData,
		})

		assert.Empty(t, got.SystemContext)
		assert.Equal(t, "\n(Failed to parse attached PDF file).", got.TextSuffix)
	})

	t.Run("invalid base64 degrades to annotation", func(t *testing.T) {
		svc := NewAttachmentService(tikaStub(t, http.StatusOK, "unused"))

		got := svc.Process(context.Background(), &TurnFile{
			Name: "corrupt.pdf", MediaType: "application/pdf", Data: "!!not-base64!!",
		})

		assert.Equal(t, "\n(Failed to parse attached PDF file).", got.TextSuffix)
	})

	t.Run("oversized text is truncated", func(t *testing.T) {
		svc := NewAttachmentService(tikaStub(t, http.StatusOK, strings.Repeat("x", 15000)))

		got := svc.Process(context.Background(), &TurnFile{
			Name: "big.pdf", MediaType: "application/pdf", Data: pdfData,
		})

		require.NotEmpty(t, got.SystemContext)
		assert.NotContains(t, got.SystemContext, strings.Repeat("x", 10001))
		assert.Contains(t, got.SystemContext, strings.Repeat("x", 10000))
	})
}

func TestProcess_UnsupportedTypeIgnored(t *testing.T) {
	svc := NewAttachmentService(tikaStub(t, http.StatusOK, "unused"))

	got := svc.Process(context.Background(), &TurnFile{
		Name: "notes.docx", MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Data: "QUJD",
	})

	assert.Equal(t, ProcessedFile{}, got)
}

func TestStripDataURLPrefix(t *testing.T) {
	assert.Equal(t, "QUJD", StripDataURLPrefix("data:application/pdf;base64,QUJD"))
	assert.Equal(t, "QUJD", StripDataURLPrefix("QUJD"))
}
