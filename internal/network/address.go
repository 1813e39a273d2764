package network

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// AddressはIPv4ホストアドレスを32bit整数で保持する
type Address uint32

// ParseAddressはドット区切り10進表記のIPv4アドレスを解析する
func ParseAddress(s string) (Address, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("IPアドレスの形式が不正です: %q", s)
	}
	if !ip.Is4() {
		return 0, fmt.Errorf("IPv4アドレスではありません: %q", s)
	}
	b := ip.As4()
	return Address(binary.BigEndian.Uint32(b[:])), nil
}

// MustParseAddress is ParseAddress for constants in tests and tables.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) Octets() [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(a))
	return b
}

// Addr returns the address as a netip.Addr for socket use.
func (a Address) Addr() netip.Addr {
	return netip.AddrFrom4(a.Octets())
}

func (a Address) String() string {
	b := a.Octets()
	var sb strings.Builder
	sb.Grow(15)
	for i, o := range b {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(int(o)))
	}
	return sb.String()
}

// Prefixは/24ブロックの上位3オクテット（a.b.c）
type Prefix [3]byte

// ParsePrefixは "192.168.100" 形式のトークンを解析する
func ParsePrefix(token string) (Prefix, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Prefix{}, &InvalidSubnetError{Token: token}
	}
	var p Prefix
	for i, part := range parts {
		if part == "" || len(part) > 3 {
			return Prefix{}, &InvalidSubnetError{Token: token}
		}
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return Prefix{}, &InvalidSubnetError{Token: token}
		}
		p[i] = byte(n)
	}
	return p, nil
}

// Hostはサフィックスを付けたホストアドレスを返す
func (p Prefix) Host(suffix byte) Address {
	return Address(uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(suffix))
}

func (p Prefix) String() string {
	return fmt.Sprintf("%d.%d.%d", p[0], p[1], p[2])
}

// Strings converts addresses to their dotted-quad form.
func Strings(addrs []Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
