package estimate

import (
	"context"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"prd-generator-api/pkg/logger"
)

// 分词器名称
const (
	TokenizerHeuristic = "heuristic"
)

// Tokenizer 计算文本 token 数
type Tokenizer interface {
	Name() string
	Count(text string) int
}

// HeuristicTokenizer 按 4 个字符约 1 个 token 估算
type HeuristicTokenizer struct{}

// Name 分词器名称
func (HeuristicTokenizer) Name() string { return TokenizerHeuristic }

// Count 返回 rune 数 / 4
func (HeuristicTokenizer) Count(text string) int {
	return utf8.RuneCountInString(text) / 4
}

type bpeTokenizer struct {
	name string
	enc  *tiktoken.Tiktoken
}

func (t *bpeTokenizer) Name() string { return t.name }

func (t *bpeTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenizer 加载内嵌 BPE 词表，失败时退回启发式估算
func NewTokenizer(encoding string) Tokenizer {
	if encoding == "" || encoding == TokenizerHeuristic {
		return HeuristicTokenizer{}
	}

	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn(context.Background(), "tokenizer unavailable, falling back to heuristic",
			"encoding", encoding, "error", err.Error())
		return HeuristicTokenizer{}
	}
	return &bpeTokenizer{name: encoding, enc: enc}
}
