package api

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/auditsmart/internal/models"
	"github.com/rxtech-lab/auditsmart/internal/workflow"
)

var validate = validator.New()

// maxSourceSize bounds uploaded contract sources.
const maxSourceSize = 1 << 20

type SourceRequest struct {
	Kind     models.SourceKind `json:"kind" form:"kind" validate:"omitempty,oneof=file pasted"`
	FileName string            `json:"file_name,omitempty" form:"file_name"`
	Code     string            `json:"code" form:"code"`
}

type ConstructorArgsRequest struct {
	Args map[string]string `json:"args" validate:"required"`
}

func (s *APIServer) handleGetSession(c *fiber.Ctx) error {
	return c.JSON(s.engine.Snapshot())
}

// handleSetSource accepts pasted code as JSON or a multipart upload in the
// "file" field.
func (s *APIServer) handleSetSource(c *fiber.Ctx) error {
	var req SourceRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		if fileHeader.Size > maxSourceSize {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "file is too large")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("failed to open file: %v", err))
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		}
		req = SourceRequest{Kind: models.SourceKindFile, FileName: fileHeader.Filename, Code: string(content)}
	} else if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return err
	}

	var err error
	if req.Kind == models.SourceKindFile {
		if req.FileName == "" {
			return fiber.NewError(fiber.StatusBadRequest, "file_name is required for file sources")
		}
		err = s.engine.SelectFile(req.FileName, req.Code)
	} else {
		err = s.engine.SetPastedCode(req.Code)
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleAudit(c *fiber.Ctx) error {
	if err := s.engine.Submit(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleDeploy(c *fiber.Ctx) error {
	if err := s.engine.RequestDeploy(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleDeclineDeployment(c *fiber.Ctx) error {
	if err := s.engine.DeclineDeployment(); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleConstructorArgs(c *fiber.Ctx) error {
	var req ConstructorArgsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return err
	}
	if err := s.engine.SubmitConstructorArgs(c.UserContext(), req.Args); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleCancelConstructorArgs(c *fiber.Ctx) error {
	if err := s.engine.CancelConstructorArgs(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleMint(c *fiber.Ctx) error {
	if err := s.engine.RequestMint(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleDeclineMinting(c *fiber.Ctx) error {
	if err := s.engine.DeclineMinting(); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleReset(c *fiber.Ctx) error {
	if err := s.engine.Reset(); err != nil {
		if workflow.IsConflictError(err) {
			return s.fail(c, err)
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(s.engine.Snapshot())
}

func (s *APIServer) handleDismissError(c *fiber.Ctx) error {
	s.engine.DismissError()
	return c.JSON(s.engine.Snapshot())
}
