package generation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/pkg/utils"
)

// 项目目录内的元数据文件
const (
	GenerationInfoFile = "_generation_info.json"
	RawResponseFile    = "_raw_response.json"
)

// writeReport 文件写入结果
type writeReport struct {
	written    []string
	skipped    []string
	totalBytes int
}

// safeRelPath 规范化模型给出的路径，拒绝绝对路径与越界路径
func safeRelPath(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" || utils.IsAbsolute(p) || utils.HasTraversal(p) {
		return "", false
	}
	clean := filepath.Clean(filepath.FromSlash(strings.ReplaceAll(p, `\`, "/")))
	if clean == "." || !filepath.IsLocal(clean) {
		return "", false
	}
	return clean, true
}

// writeFiles 依次写入文件，遇到第一个错误即停止
// 返回的 report 始终包含已成功写入的文件
func writeFiles(projectDir string, files []entity.GeneratedFile) (*writeReport, error) {
	report := &writeReport{written: []string{}}
	for _, f := range files {
		rel, ok := safeRelPath(f.Path)
		if !ok || isMetadataFile(rel) {
			report.skipped = append(report.skipped, f.Path)
			continue
		}

		target := filepath.Join(projectDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return report, fmt.Errorf("create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			return report, fmt.Errorf("write %s: %w", rel, err)
		}
		report.written = append(report.written, filepath.ToSlash(rel))
		report.totalBytes += len(f.Content)
	}
	return report, nil
}

func isMetadataFile(rel string) bool {
	return rel == GenerationInfoFile || rel == RawResponseFile
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
