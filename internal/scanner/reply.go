package scanner

import (
	"net"

	"github.com/divergen371/ipscan/internal/network"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// echoMatchは受信したICMPメッセージが自分の要求への応答か判定する
type echoMatch struct {
	from    network.Address
	id      int
	seq     int
	// 非特権ソケットではカーネルがIDを書き換えるので照合しない
	checkID bool
}

func (m echoMatch) fromPeer(peer net.Addr) bool {
	var ip net.IP
	switch a := peer.(type) {
	case *net.IPAddr:
		ip = a.IP
	case *net.UDPAddr:
		ip = a.IP
	default:
		return false
	}
	return ip.Equal(net.IP(m.from.Addr().AsSlice()))
}

func (m echoMatch) matches(b []byte) bool {
	reply, ok := decodeEchoReply(b)
	if !ok {
		return false
	}
	if int(reply.Seq) != m.seq {
		return false
	}
	return !m.checkID || int(reply.Id) == m.id
}

// decodeEchoReplyはICMPヘッダから始まるバイト列をデコードし、Echo Replyのみ返す
func decodeEchoReply(b []byte) (*layers.ICMPv4, bool) {
	pkt := gopacket.NewPacket(b, layers.LayerTypeICMPv4, gopacket.NoCopy)
	l := pkt.Layer(layers.LayerTypeICMPv4)
	if l == nil {
		return nil, false
	}
	reply, ok := l.(*layers.ICMPv4)
	if !ok || reply.TypeCode.Type() != layers.ICMPv4TypeEchoReply {
		return nil, false
	}
	return reply, true
}
