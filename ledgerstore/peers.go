package ledgerstore

import (
	"net"

	"github.com/ledgerlattice/corenode/kv"
)

// peerKey encodes (ip6_bytes, port) as an 18-byte key for the peers
// table. IPv4 addresses are stored in their IPv4-in-IPv6 form.
func peerKey(ip net.IP, port uint16) []byte {
	out := make([]byte, 18)
	copy(out[0:16], ip.To16())
	out[16] = byte(port >> 8)
	out[17] = byte(port)
	return out
}

// PeerPut persists a known peer address.
func (t *Txn) PeerPut(ip net.IP, port uint16) error {
	return t.put(tablePeers, peerKey(ip, port), nil)
}

// PeerDelete removes a peer address.
func (t *Txn) PeerDelete(ip net.IP, port uint16) error {
	return t.delete(tablePeers, peerKey(ip, port))
}

// PeerList returns every persisted peer as (ip, port) pairs.
func (t *Txn) PeerList() ([]net.IP, []uint16, error) {
	it := t.iterate(tablePeers, kv.Range{})
	defer it.Release()
	var ips []net.IP
	var ports []uint16
	for it.Next() {
		k := it.Key()
		if len(k) != 18 {
			continue
		}
		ip := make(net.IP, 16)
		copy(ip, k[0:16])
		port := uint16(k[16])<<8 | uint16(k[17])
		ips = append(ips, ip)
		ports = append(ports, port)
	}
	return ips, ports, it.Error()
}
