package relay

import "sync"

var claims = struct {
	sync.Mutex
	ports map[int]bool
}{ports: make(map[int]bool)}

func claimPort(port int) bool {
	claims.Lock()
	defer claims.Unlock()
	if claims.ports[port] {
		return false
	}
	claims.ports[port] = true
	return true
}

func releasePort(port int) {
	claims.Lock()
	defer claims.Unlock()
	delete(claims.ports, port)
}
