// Package utils 提供通用工具函数
package utils

import (
	"strings"
)

// SanitizePath 去除首尾空白与引号
// 从资源管理器复制的路径常带有成对引号，如 "C:\a\b"
func SanitizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.NewReplacer(`"`, "", `'`, "").Replace(p)
	return strings.TrimSpace(p)
}

// HasTraversal 判断路径是否包含 ".." 段，同时识别 / 与 \ 分隔符
func HasTraversal(p string) bool {
	for _, seg := range splitSegments(p) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// IsAbsolute 判断路径是否为绝对路径（含 Windows 盘符与 UNC 形式）
func IsAbsolute(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) {
		return true
	}
	return len(p) >= 2 && p[1] == ':' && isLetter(p[0])
}

// LastSegment 返回路径最后一段，忽略末尾分隔符
func LastSegment(p string) string {
	segs := splitSegments(p)
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			return segs[i]
		}
	}
	return ""
}

// Slugify 将名称转换为可用作目录名的形式
// 空格与连字符替换为下划线，移除路径非法字符
func Slugify(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == ' ' || r == '-' || r == '\t':
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

func splitSegments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
