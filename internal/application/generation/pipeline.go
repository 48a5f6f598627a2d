// Package generation 实现 PRD 到项目文件的生成流水线
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"prd-generator-api/internal/application/estimate"
	"prd-generator-api/internal/config"
	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/internal/infrastructure/llm"
	apperrors "prd-generator-api/pkg/errors"
	"prd-generator-api/pkg/logger"
	"prd-generator-api/pkg/metrics"
	"prd-generator-api/pkg/tracer"
	"prd-generator-api/pkg/utils"
)

// ModelGateway 模型调用入口
type ModelGateway interface {
	ResolveKey(ctx context.Context, model entity.Model, requestKey string) string
	Generate(ctx context.Context, model entity.Model, prompt string, maxTokens int, apiKey string) (*llm.Completion, error)
}

// CostEstimator token 估算与计费
type CostEstimator interface {
	Estimate(ctx context.Context, text string, model entity.Model, maxTokens int) estimate.Result
	Cost(model entity.Model, inputTokens, outputTokens int) float64
}

// PathRecorder 输出路径历史
type PathRecorder interface {
	AddPath(ctx context.Context, path string) bool
}

// Pipeline 生成流水线
// Validating -> Estimating -> Calling -> Parsing -> Writing -> Done，任一步失败进入 Failed
type Pipeline struct {
	output    config.OutputConfig
	models    ModelGateway
	estimator CostEstimator
	paths     PathRecorder
	now       func() time.Time
}

// NewPipeline 创建生成流水线
func NewPipeline(cfg *config.Config, models ModelGateway, estimator CostEstimator, paths PathRecorder) *Pipeline {
	out := cfg.Output
	if out.DefaultDir == "" {
		out.DefaultDir = "output"
	}
	if out.DefaultMaxTokens <= 0 {
		out.DefaultMaxTokens = 100000
	}
	if out.PRDSummaryChars <= 0 {
		out.PRDSummaryChars = 500
	}
	return &Pipeline{
		output:    out,
		models:    models,
		estimator: estimator,
		paths:     paths,
		now:       time.Now,
	}
}

// Run 执行一次生成
// 写入失败时同时返回部分结果与错误
func (p *Pipeline) Run(ctx context.Context, req *entity.GenerationRequest) (result *entity.GenerationResult, err error) {
	result = &entity.GenerationResult{
		Model:        req.Model,
		FilesWritten: []string{},
		State:        entity.StateValidating,
		StartedAt:    p.now(),
	}

	ctx, span := tracer.Start(ctx, "generation.Run")
	defer func() {
		result.CompletedAt = p.now()
		status := "success"
		if err != nil {
			status = "failed"
			logger.Error(ctx, "generation failed", err, "state", string(result.State))
			result.State = entity.StateFailed
		}
		model := string(result.Model)
		if _, known := entity.ParseModel(model); !known {
			model = "unknown"
		}
		metrics.GenerationTotal.WithLabelValues(model, status).Inc()
		metrics.GenerationDuration.WithLabelValues(model).Observe(result.CompletedAt.Sub(result.StartedAt).Seconds())
		span.SetAttributes(attribute.String("generation.status", status))
		tracer.Finish(span, err)
	}()

	// Validating
	prd := CombinePRD(req.PRDText, req.Files)
	if prd == "" {
		return result, apperrors.New(apperrors.CodeInvalidParam, "PRD content is empty")
	}
	model, ok := entity.ParseModel(string(req.Model))
	if !ok {
		return result, apperrors.New(apperrors.CodeInvalidParam, "unsupported model").
			WithDetail(fmt.Sprintf("model %q is not one of gemini, kimi", req.Model))
	}
	result.Model = model
	ctx = logger.WithContext(ctx, logger.ModelKey, string(model))

	outputDir, err := p.prepareOutputDir(req.OutputDir)
	if err != nil {
		return result, err
	}
	apiKey := p.models.ResolveKey(ctx, model, req.APIKey)
	if apiKey == "" {
		return result, apperrors.New(apperrors.CodeInvalidParam, "API key is not configured").
			WithDetail("set " + model.KeyName() + " in settings or provide it with the request")
	}

	// Estimating
	result.State = entity.StateEstimating
	prompt := BuildPrompt(prd)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.output.DefaultMaxTokens
	}
	est := p.estimator.Estimate(ctx, prompt, model, maxTokens)
	result.EstimatedInputTokens = est.InputTokens
	if est.AvailableOutputTokens <= 0 {
		return result, apperrors.New(apperrors.CodeContextExceeded, "PRD exceeds context window").
			WithDetail(fmt.Sprintf("estimated %d input tokens, context limit %d", est.InputTokens, est.ContextLimit))
	}

	// Calling
	result.State = entity.StateCalling
	logger.Info(ctx, "calling model", "estimated_input_tokens", est.InputTokens, "max_tokens", est.AvailableOutputTokens)
	completion, err := p.models.Generate(ctx, model, prompt, est.AvailableOutputTokens, apiKey)
	if err != nil {
		appErr := apperrors.Wrap(err, apperrors.CodeLLMProviderError, "model call failed")
		var upErr *llm.UpstreamError
		if errors.As(err, &upErr) {
			appErr.WithDetail(upErr.Error())
		}
		return result, appErr
	}
	result.InputTokens = completion.InputTokens
	result.OutputTokens = completion.OutputTokens
	result.CostUSD = p.estimator.Cost(model, completion.InputTokens, completion.OutputTokens)
	result.RawResponse = completion.Text
	metrics.GenerationCostUSD.WithLabelValues(string(model)).Add(result.CostUSD)

	// Parsing
	result.State = entity.StateParsing
	project, perr := ParseResponse(completion.Text)
	modelName := ""
	if perr != nil {
		result.ParseError = perr.Error()
		logger.Warn(ctx, "model response could not be parsed, keeping raw response", "error", perr.Error())
	} else {
		result.Parsed = true
		modelName = project.ProjectName
	}

	now := p.now()
	result.ProjectName = ResolveProjectName(ProjectNameFromPRD(req.ProjectName, req.Files, prd), modelName, now)
	projectDir, projectName := p.projectDir(outputDir, result.ProjectName, now)
	result.ProjectName = projectName
	result.ProjectDir = projectDir
	ctx = logger.WithContext(ctx, logger.ProjectKey, result.ProjectName)

	// Writing
	result.State = entity.StateWriting
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return result, apperrors.Wrap(err, apperrors.CodeWriteFailed, "failed to create project directory")
	}

	var writeErr error
	if project != nil {
		report, werr := writeFiles(projectDir, project.Files)
		result.FilesWritten = report.written
		result.SkippedFiles = report.skipped
		result.TotalBytes = report.totalBytes
		writeErr = werr
		metrics.FilesWritten.WithLabelValues(string(model)).Add(float64(len(report.written)))
		if len(report.skipped) > 0 {
			logger.Warn(ctx, "skipped unsafe file paths", "paths", report.skipped)
		}
	}

	// 写入失败时仍尝试保存元数据
	if merr := p.writeMetadata(projectDir, prd, result, completion); merr != nil && writeErr == nil {
		writeErr = merr
	}
	if writeErr != nil {
		return result, apperrors.Wrap(writeErr, apperrors.CodeWriteFailed, "write failed").
			WithDetail(fmt.Sprintf("%d files written before failure", len(result.FilesWritten)))
	}

	p.paths.AddPath(ctx, outputDir)
	result.State = entity.StateDone
	logger.Info(ctx, "generation completed",
		"project_dir", projectDir,
		"files", len(result.FilesWritten),
		"parsed", result.Parsed,
		"cost_usd", result.CostUSD,
	)
	return result, nil
}

// prepareOutputDir 清理输出目录并确认可写
func (p *Pipeline) prepareOutputDir(raw string) (string, error) {
	dir := utils.SanitizePath(raw)
	if dir == "" {
		dir = p.output.DefaultDir
	}
	if utils.HasTraversal(dir) {
		return "", apperrors.New(apperrors.CodeInvalidParam, "output directory must not contain '..'").WithDetail(dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInvalidParam, "output directory is not writable").WithDetail(dir)
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInvalidParam, "output directory is not writable").WithDetail(dir)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return dir, nil
}

// projectDir 输出目录已以项目名结尾时不再嵌套；目标已存在时追加时间戳
func (p *Pipeline) projectDir(outputDir, name string, now time.Time) (string, string) {
	if utils.LastSegment(outputDir) == name {
		return outputDir, name
	}
	if _, err := os.Stat(filepath.Join(outputDir, name)); err == nil {
		name = name + "_" + now.Format(timestampLayout)
	}
	return filepath.Join(outputDir, name), name
}

type generationInfo struct {
	ProjectName          string   `json:"project_name"`
	Model                string   `json:"model"`
	Provider             string   `json:"provider"`
	GenerationDate       string   `json:"generation_date"`
	EstimatedInputTokens int      `json:"estimated_input_tokens"`
	InputTokens          int      `json:"input_tokens"`
	OutputTokens         int      `json:"output_tokens"`
	TotalTokens          int      `json:"total_tokens"`
	CostUSD              float64  `json:"cost_usd"`
	FilesCreated         int      `json:"files_created"`
	Files                []string `json:"files"`
	SkippedFiles         []string `json:"skipped_files,omitempty"`
	TotalSizeBytes       int      `json:"total_size_bytes"`
	Parsed               bool     `json:"parsed"`
	ParseError           string   `json:"parse_error,omitempty"`
	OutputDirectory      string   `json:"output_directory"`
	PRDSummary           string   `json:"prd_summary"`
}

type rawResponse struct {
	Model            string          `json:"model"`
	Provider         string          `json:"provider"`
	CapturedAt       string          `json:"captured_at"`
	Content          string          `json:"content"`
	ProviderResponse json.RawMessage `json:"provider_response,omitempty"`
}

func (p *Pipeline) writeMetadata(projectDir, prd string, result *entity.GenerationResult, completion *llm.Completion) error {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		absDir = projectDir
	}
	now := p.now().Format(time.RFC3339)

	info := generationInfo{
		ProjectName:          result.ProjectName,
		Model:                string(result.Model),
		Provider:             result.Model.Provider(),
		GenerationDate:       now,
		EstimatedInputTokens: result.EstimatedInputTokens,
		InputTokens:          result.InputTokens,
		OutputTokens:         result.OutputTokens,
		TotalTokens:          result.TotalTokens(),
		CostUSD:              result.CostUSD,
		FilesCreated:         len(result.FilesWritten),
		Files:                result.FilesWritten,
		SkippedFiles:         result.SkippedFiles,
		TotalSizeBytes:       result.TotalBytes,
		Parsed:               result.Parsed,
		ParseError:           result.ParseError,
		OutputDirectory:      absDir,
		PRDSummary:           summarize(prd, p.output.PRDSummaryChars),
	}
	if err := writeJSON(filepath.Join(projectDir, GenerationInfoFile), info); err != nil {
		return fmt.Errorf("write %s: %w", GenerationInfoFile, err)
	}

	raw := rawResponse{
		Model:      string(result.Model),
		Provider:   result.Model.Provider(),
		CapturedAt: now,
		Content:    completion.Text,
	}
	if json.Valid([]byte(completion.Raw)) {
		raw.ProviderResponse = json.RawMessage(completion.Raw)
	}
	if err := writeJSON(filepath.Join(projectDir, RawResponseFile), raw); err != nil {
		return fmt.Errorf("write %s: %w", RawResponseFile, err)
	}
	return nil
}

// summarize 截取前 n 个字符
func summarize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
