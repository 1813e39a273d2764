package network

import (
	"strings"
)

const (
	firstHost      = 1
	lastHost       = 255
	lastUsableHost = 254
)

var commaReplacer = strings.NewReplacer("，", ",", "、", ",")

// NormalizeInputは全角カンマなどを半角カンマに置き換える
func NormalizeInput(raw string) string {
	return commaReplacer.Replace(raw)
}

type enumerateOptions struct {
	last int
}

// EnumerateOption adjusts ExpandPrefixes.
type EnumerateOption func(*enumerateOptions)

// WithoutBroadcast stops each block at .254 instead of .255.
func WithoutBroadcast() EnumerateOption {
	return func(o *enumerateOptions) { o.last = lastUsableHost }
}

// ParsePrefixesはカンマ区切りのサブネット指定をPrefixのスライスに変換する。
// 空トークンは無視し、重複は最初の出現のみ残す。
func ParsePrefixes(raw string) ([]Prefix, error) {
	input := NormalizeInput(raw)
	if strings.TrimSpace(input) == "" {
		return nil, ErrInvalidInput
	}
	var prefixes []Prefix
	seen := make(map[Prefix]struct{})
	for _, token := range strings.Split(input, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		p, err := ParsePrefix(token)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		prefixes = append(prefixes, p)
	}
	if len(prefixes) == 0 {
		return nil, ErrInvalidInput
	}
	return prefixes, nil
}

// ExpandPrefixesはサブネット指定からスキャン対象のアドレス一覧を生成する
func ExpandPrefixes(raw string, opts ...EnumerateOption) ([]Address, error) {
	o := enumerateOptions{last: lastHost}
	for _, opt := range opts {
		opt(&o)
	}
	prefixes, err := ParsePrefixes(raw)
	if err != nil {
		return nil, err
	}
	perPrefix := o.last - firstHost + 1
	addrs := make([]Address, 0, perPrefix*len(prefixes))
	for _, p := range prefixes {
		for suffix := firstHost; suffix <= o.last; suffix++ {
			addrs = append(addrs, p.Host(byte(suffix)))
		}
	}
	return addrs, nil
}
