package network

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInputはサブネット指定が空、または解析可能なトークンを含まない場合のエラー
	ErrInvalidInput = errors.New("サブネットを入力してください")
	// ErrInvalidSubnetは不正なサブネットトークンを表す
	ErrInvalidSubnet = errors.New("サブネットの形式が不正です")
)

// InvalidSubnetErrorは問題のあったトークンを保持する
type InvalidSubnetError struct {
	Token string
}

func (e *InvalidSubnetError) Error() string {
	return fmt.Sprintf("%v: %q（例: 192.168.100）", ErrInvalidSubnet, e.Token)
}

func (e *InvalidSubnetError) Unwrap() error { return ErrInvalidSubnet }
