package network

import (
	"slices"
)

// SortAddressesは数値順に並べた新しいスライスを返す
func SortAddresses(addrs []Address) []Address {
	out := slices.Clone(addrs)
	slices.Sort(out)
	return out
}

// SortStringsはドット区切り表記のアドレスを数値順に並べる。
// 解析できない要素があればエラーを返す。
func SortStrings(addrs []string) ([]string, error) {
	parsed := make([]Address, len(addrs))
	for i, s := range addrs {
		a, err := ParseAddress(s)
		if err != nil {
			return nil, err
		}
		parsed[i] = a
	}
	return Strings(SortAddresses(parsed)), nil
}

// Difference returns the members of all that are not in remove, keeping the order of all.
func Difference(all, remove []Address) []Address {
	drop := make(map[Address]struct{}, len(remove))
	for _, a := range remove {
		drop[a] = struct{}{}
	}
	out := make([]Address, 0, len(all)-min(len(all), len(drop)))
	for _, a := range all {
		if _, ok := drop[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}
