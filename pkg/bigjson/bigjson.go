// Package bigjson encodes records for stores whose JSON numbers are IEEE-754
// doubles. Integer literals outside the safe range are written as tagged
// strings ("$bigint:<digits>") and turned back into number literals on read,
// so values round-trip without precision loss.
package bigjson

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/segmentio/encoding/json"
)

const (
	BigIntTag = "$bigint:"
	// 原本就以 tag 开头的普通字符串加这个前缀转义
	escapeTag = "$str:"
)

// 2^53 - 1
var maxSafe = big.NewInt(1<<53 - 1)

// Marshal 编码 v，超过安全整数范围的数字转成带 tag 的字符串。
// 只改写需要 tag 的 token，其余字节 (包括 RawMessage 里的键顺序、空白和转义) 原样保留
func Marshal(v any) ([]byte, error) {
	raw, err := json.Append(nil, v, json.SortMapKeys|json.TrustRawMessage)
	if err != nil {
		return nil, err
	}
	return rewrite(raw, tagToken)
}

// Unmarshal 先还原 tag，再解码到 v
func Unmarshal(data []byte, v any) error {
	raw, err := rewrite(data, untagToken)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// IsUnsafeInteger 判断数字字面量是否为超出 double 精度的整数
func IsUnsafeInteger(lit string) bool {
	if strings.ContainsAny(lit, ".eE") {
		return false
	}
	n, ok := new(big.Int).SetString(lit, 10)
	if !ok {
		return false
	}
	return new(big.Int).Abs(n).Cmp(maxSafe) > 0
}

// rewrite 逐个 token 扫描，fn 返回 nil 表示保持原样
func rewrite(data []byte, fn func(tok *json.Tokenizer) []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)+64)
	prev := 0
	tok := json.NewTokenizer(data)
	for tok.Next() {
		if tok.Delim != 0 {
			continue
		}
		repl := fn(tok)
		if repl == nil {
			continue
		}
		end := len(data) - tok.Remaining()
		start := end - len(tok.Value)
		out = append(out, data[prev:start]...)
		out = append(out, repl...)
		prev = end
	}
	if tok.Err != nil {
		return nil, tok.Err
	}
	return append(out, data[prev:]...), nil
}

// tagToken 大整数变成 "$bigint:<digits>"；解码后以 tag 开头的字符串在引号后加转义前缀
func tagToken(tok *json.Tokenizer) []byte {
	switch tok.Kind().Class() {
	case json.Num:
		if IsUnsafeInteger(string(tok.Value)) {
			return []byte(`"` + BigIntTag + string(tok.Value) + `"`)
		}
	case json.String:
		s := tok.String()
		if bytes.HasPrefix(s, []byte(BigIntTag)) || bytes.HasPrefix(s, []byte(escapeTag)) {
			return append([]byte(`"`+escapeTag), tok.Value[1:]...)
		}
	}
	return nil
}

// untagToken 只认字面量前缀，都是 tagToken 写出来的
func untagToken(tok *json.Tokenizer) []byte {
	v := tok.Value
	if len(v) == 0 || v[0] != '"' {
		return nil
	}
	switch {
	case bytes.HasPrefix(v, []byte(`"`+escapeTag)):
		return append([]byte(`"`), v[1+len(escapeTag):]...)
	case bytes.HasPrefix(v, []byte(`"`+BigIntTag)):
		digits := v[1+len(BigIntTag) : len(v)-1]
		if !IsUnsafeInteger(string(digits)) {
			return nil
		}
		return append([]byte(nil), digits...)
	}
	return nil
}
