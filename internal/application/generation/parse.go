package generation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"prd-generator-api/internal/domain/entity"
)

// ErrUnparseable 响应中找不到任何文件
var ErrUnparseable = errors.New("response contains no parseable file list")

var (
	fenceOpenPattern    = regexp.MustCompile("```(?:json)?")
	filesArrayPattern   = regexp.MustCompile(`"files"\s*:\s*\[([\s\S]+)\]`)
	projectNamePattern  = regexp.MustCompile(`"project_name"\s*:\s*"([^"]+)"`)
	fileDelimiterHeader = regexp.MustCompile(`(?m)^={3,}\s*FILE:\s*(.+?)\s*={3,}\s*$`)
)

// Project 模型返回的项目结构
type Project struct {
	ProjectName string                 `json:"project_name"`
	Files       []entity.GeneratedFile `json:"files"`
}

// ParseResponse 容错解析模型输出
// 依次尝试：整体 JSON、```json 代码块、最外层花括号、局部 files 数组、=== FILE: path === 分隔块
// 只有不在代码块中的内容才会做截断修复
func ParseResponse(text string) (*Project, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, ErrUnparseable
	}

	if strings.HasPrefix(raw, "{") {
		if p := decodeProject(raw); p != nil {
			return p, nil
		}
	}

	// 代码块内的内容可能自带 ```，按括号配对截取且不做修复
	for _, loc := range fenceOpenPattern.FindAllStringIndex(raw, -1) {
		if obj := balancedObject(raw[loc[1]:]); obj != "" {
			if p := decodeStrict(obj); p != nil {
				return p, nil
			}
		}
	}

	if obj := extractJSONObject(raw); obj != "" {
		if p := decodeProject(obj); p != nil {
			return p, nil
		}
	}

	if p := recoverFilesArray(raw); p != nil {
		return p, nil
	}

	if p := parseDelimitedBlocks(raw); p != nil {
		return p, nil
	}

	return nil, ErrUnparseable
}

// decodeProject 先按原样解析，失败后修复再解析；没有文件时视为失败
func decodeProject(s string) *Project {
	s = strings.TrimSpace(s)
	if p := decodeStrict(s); p != nil {
		return p
	}
	return decodeStrict(repairJSON(s))
}

func decodeStrict(s string) *Project {
	var p Project
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil
	}
	if len(p.Files) == 0 {
		return nil
	}
	return &p
}

// balancedObject 从第一个 { 开始截取到与之配对的 }，忽略字符串内的括号
// 括号不闭合时返回空串
func balancedObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// extractJSONObject 截取第一个 { 到最后一个 } 之间的内容
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// recoverFilesArray 只恢复 "files": [...] 部分
func recoverFilesArray(s string) *Project {
	m := filesArrayPattern.FindStringSubmatch(s)
	if m == nil {
		return nil
	}

	var files []entity.GeneratedFile
	arr := "[" + m[1] + "]"
	if err := json.Unmarshal([]byte(arr), &files); err != nil {
		if err := json.Unmarshal([]byte(repairJSON(arr)), &files); err != nil {
			return nil
		}
	}
	if len(files) == 0 {
		return nil
	}

	p := &Project{Files: files}
	if nm := projectNamePattern.FindStringSubmatch(s); nm != nil {
		p.ProjectName = nm[1]
	}
	return p
}

// parseDelimitedBlocks 解析 === FILE: path === 分隔的纯文本输出
func parseDelimitedBlocks(s string) *Project {
	locs := fileDelimiterHeader.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil
	}

	p := &Project{}
	for i, loc := range locs {
		path := strings.TrimSpace(s[loc[2]:loc[3]])
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimPrefix(s[loc[1]:end], "\n")
		content = strings.TrimRight(content, "\n") + "\n"
		p.Files = append(p.Files, entity.GeneratedFile{Path: path, Content: content})
	}
	return p
}

// repairJSON 修复截断或带尾逗号的 JSON
// 仅在字符串之外删除多余逗号并按嵌套顺序补齐缺失的括号
func repairJSON(s string) string {
	var (
		b        strings.Builder
		stack    []byte
		inString bool
		escaped  bool
	)
	b.Grow(len(s) + 8)

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if next := nextNonSpace(s, i+1); next == '}' || next == ']' || next == 0 {
				continue
			}
		}
		b.WriteByte(c)
	}

	if inString {
		if escaped {
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

func nextNonSpace(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return s[i]
		}
	}
	return 0
}
