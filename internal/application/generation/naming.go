package generation

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"prd-generator-api/internal/domain/entity"
	"prd-generator-api/pkg/utils"
)

// 时间戳格式，用于默认项目名与重名后缀
const timestampLayout = "20060102_150405"

var (
	projectHeaderPattern = regexp.MustCompile(`(?i)#\s*(?:Project|App|Application|System)(?:\s*Name)?:\s*(.+)`)
	titlePattern         = regexp.MustCompile(`(?m)^#\s+(.+?)\s*#*\s*$`)
)

// ProjectNameFromPRD 在调用模型之前确定项目名
// 顺序：显式指定 > 首个上传文件名 > "# Project Name:" 标题行 > 第一个一级标题
// 均无结果时返回空串
func ProjectNameFromPRD(explicit string, files []entity.SourceFile, prd string) string {
	if name := utils.Slugify(explicit); name != "" {
		return name
	}
	if len(files) > 0 {
		base := filepath.Base(strings.ReplaceAll(files[0].Name, `\`, "/"))
		if name := utils.Slugify(strings.TrimSuffix(base, filepath.Ext(base))); name != "" {
			return name
		}
	}
	if m := projectHeaderPattern.FindStringSubmatch(prd); m != nil {
		if name := utils.Slugify(m[1]); name != "" {
			return name
		}
	}
	if m := titlePattern.FindStringSubmatch(prd); m != nil {
		if name := utils.Slugify(m[1]); name != "" {
			return name
		}
	}
	return ""
}

// ResolveProjectName 用模型给出的名称或时间戳补全项目名
func ResolveProjectName(fromPRD, fromModel string, now time.Time) string {
	if fromPRD != "" {
		return fromPRD
	}
	if name := utils.Slugify(fromModel); name != "" {
		return name
	}
	return "generated_project_" + now.Format(timestampLayout)
}
