package artifact

import (
	"net"
	"strconv"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/buckleypaul/sideload/internal/device"
)

// Compile-time variables read by the app's logger.
const (
	EnvLogRelay = "GPUI_LOG_RELAY"
	EnvLogLevel = "GPUI_LOG_LEVEL"
)

// InterfaceLister enumerates host network interfaces.
type InterfaceLister func() (gnet.InterfaceStatList, error)

// RelayAddress returns the host:port the app should stream logs to, or ""
// when no usable address exists. Simulators share the host's loopback.
func RelayAddress(dest device.Destination, port int, list InterfaceLister) string {
	if port <= 0 {
		return ""
	}
	if dest == device.DestinationSimulator {
		return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	}
	ip := LANAddress(list)
	if ip == "" {
		return ""
	}
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

// LANAddress returns the first IPv4 address on an up, non-loopback
// interface, preferring en* interfaces (Wi-Fi and Ethernet on macOS).
func LANAddress(list InterfaceLister) string {
	if list == nil {
		list = gnet.Interfaces
	}
	ifaces, err := list()
	if err != nil {
		return ""
	}
	var fallback string
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			ip := parseAddr(a.Addr)
			if ip == nil || ip.To4() == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if strings.HasPrefix(iface.Name, "en") {
				return ip.String()
			}
			if fallback == "" {
				fallback = ip.String()
			}
		}
	}
	return fallback
}

// RelayEnv builds the compile environment for the app's logger.
func RelayEnv(relayAddr, logLevel string) []string {
	var env []string
	if relayAddr != "" {
		env = append(env, EnvLogRelay+"="+relayAddr)
	}
	if logLevel != "" {
		env = append(env, EnvLogLevel+"="+logLevel)
	}
	return env
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

func parseAddr(s string) net.IP {
	if ip, _, err := net.ParseCIDR(s); err == nil {
		return ip
	}
	return net.ParseIP(s)
}
