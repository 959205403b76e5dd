package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/dmitrijs2005/dumpvault/internal/common"
	"github.com/dmitrijs2005/dumpvault/internal/server/services"
)

func (s *Server) handleListFiles(c fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: common.ErrorUnauthorized.Error()})
	}

	items, err := s.files.List(c.Context(), id.AccountID)
	if err != nil {
		return err
	}

	resp := fileListResponse{Files: make([]fileResponse, 0, len(items))}
	for _, v := range items {
		resp.Files = append(resp.Files, toFileResponse(v))
	}
	return c.JSON(resp)
}

func (s *Server) handleUploadFile(c fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: common.ErrorUnauthorized.Error()})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "No file provided"})
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	view, err := s.files.Upload(c.Context(), id.AccountID, services.FileUpload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Body:        f,
	})
	if err != nil {
		var ve *services.ValidationError
		if errors.As(err, &ve) {
			return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "No file provided"})
		}
		return err
	}

	return c.JSON(uploadResponse{Message: "File uploaded successfully", File: toFileResponse(*view)})
}

func (s *Server) handleDeleteFile(c fiber.Ctx) error {
	id, ok := identityFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errorResponse{Error: common.ErrorUnauthorized.Error()})
	}

	if err := s.files.Delete(c.Context(), id.AccountID, c.Params("id")); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "File not found"})
		}
		return err
	}

	return c.JSON(messageResponse{Message: "File deleted successfully"})
}
