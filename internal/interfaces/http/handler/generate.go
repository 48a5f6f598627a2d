package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/internal/interfaces/http/dto"
	apperrors "prd-generator-api/pkg/errors"
	"prd-generator-api/pkg/logger"
)

// Generator 生成流水线
type Generator interface {
	Run(ctx context.Context, req *entity.GenerationRequest) (*entity.GenerationResult, error)
}

// GenerateHandler 生成处理器
type GenerateHandler struct {
	generator      Generator
	defaultModel   string
	maxUploadBytes int64
}

// NewGenerateHandler 创建生成处理器
func NewGenerateHandler(generator Generator, defaultModel string, maxUploadBytes int64) *GenerateHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &GenerateHandler{
		generator:      generator,
		defaultModel:   defaultModel,
		maxUploadBytes: maxUploadBytes,
	}
}

// Generate 根据 PRD 生成项目
// 支持 application/json 与 multipart/form-data（文件字段 prdFiles）
// @Summary 生成项目
// @Tags Generation
// @Accept json,mpfd
// @Produce json
// @Param body body dto.GenerateRequest false "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/generate [post]
func (h *GenerateHandler) Generate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var req dto.GenerateRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := h.bindMultipart(c, &req); err != nil {
			dto.AppError(c, err, nil)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	model, err := resolveModel(req.Model, h.defaultModel)
	if err != nil {
		dto.AppError(c, err, nil)
		return
	}
	req.Model = string(model)

	ctx := c.Request.Context()
	result, err := h.generator.Run(ctx, req.ToEntity())
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeWriteFailed) && result != nil {
			dto.AppError(c, err, dto.ToGenerateResponse(result))
			return
		}
		dto.AppError(c, err, nil)
		return
	}

	logger.Info(ctx, "project generated",
		"project", result.ProjectName,
		"files", len(result.FilesWritten),
		"parsed", result.Parsed,
	)
	dto.Success(c, dto.ToGenerateResponse(result))
}

// bindMultipart 解析表单字段并并发读取上传的 PRD 文件
func (h *GenerateHandler) bindMultipart(c *gin.Context, req *dto.GenerateRequest) error {
	if err := c.ShouldBind(req); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidParam, "invalid form data").WithDetail(err.Error())
	}
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidParam, "invalid form data").WithDetail(err.Error())
	}

	headers := form.File["prdFiles"]
	files := make([]dto.SourceFileRequest, len(headers))
	g, _ := errgroup.WithContext(c.Request.Context())
	for i, fh := range headers {
		i, fh := i, fh
		g.Go(func() error {
			content, err := readUpload(fh)
			if err != nil {
				return fmt.Errorf("read %s: %w", fh.Filename, err)
			}
			files[i] = dto.SourceFileRequest{Name: fh.Filename, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidParam, "failed to read uploaded file").WithDetail(err.Error())
	}
	req.Files = append(req.Files, files...)
	return nil
}

func readUpload(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
